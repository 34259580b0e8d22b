package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Subscription holds the single authoritative subscription row per user.
type Subscription struct {
	Id                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserId             uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	PlanType           string     `gorm:"type:varchar(32);not null"`
	DurationCode       string     `gorm:"type:varchar(32);not null"`
	Amount             int64      `gorm:"not null"`
	Currency           string     `gorm:"type:varchar(8);not null;default:'INR'"`
	Status             string     `gorm:"type:varchar(20);not null;index"`
	StartDate          time.Time  `gorm:"not null"`
	EndDate            time.Time  `gorm:"not null;index"`
	PausedAt           *time.Time
	ResumedAt          *time.Time
	TotalPausedDays    int        `gorm:"not null;default:0"`
	PaymentId          string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	OrderId            string     `gorm:"type:varchar(255)"`
	PaymentStatus      string     `gorm:"type:varchar(20);not null"`
	PaymentProvider    string     `gorm:"type:varchar(32)"`
	CancelledAt        *time.Time
	CancellationReason *string    `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Subscription) TableName() string {
	return "subscriptions"
}

type SubscriptionHistory struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SubscriptionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index"`
	PaymentId      string         `gorm:"type:varchar(255);not null;default:'';index"`
	Status         string         `gorm:"type:varchar(20);not null"`
	Snapshot       datatypes.JSON `gorm:"not null"`
	ArchivedAt     time.Time      `gorm:"not null"`
}

func (SubscriptionHistory) TableName() string {
	return "subscription_histories"
}
