package specification

import (
	"gorm.io/gorm"
)

type ByPaymentID struct {
	PaymentID string
}

func (s ByPaymentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("payment_id = ?", s.PaymentID)
}

// NewestArchived orders history rows newest first.
type NewestArchived struct{}

func (s NewestArchived) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("archived_at DESC")
}
