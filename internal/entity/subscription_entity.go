// FILE: internal/entity/subscription_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string
type PaymentStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"

	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusExpired
}

type Subscription struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	PlanType        string
	DurationCode    string
	Amount          int64 // minor units
	Currency        string
	Status          SubscriptionStatus
	StartDate       time.Time
	EndDate         time.Time
	PausedAt        *time.Time
	ResumedAt       *time.Time
	TotalPausedDays int
	PaymentId       string
	OrderId         string
	PaymentStatus   PaymentStatus
	PaymentProvider string
	// Cancellation
	CancelledAt        *time.Time
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SubscriptionPatch carries the bookkeeping fields written together with a status change.
type SubscriptionPatch struct {
	PausedAt           *time.Time
	ResumedAt          *time.Time
	AddPausedDays      int
	CancelledAt        *time.Time
	CancellationReason *string
	// UnexpiredAt, when set, makes the write conditional on end_date > UnexpiredAt.
	UnexpiredAt *time.Time
	// ExpectedPausedAt, when set, makes the write conditional on paused_at still being this value.
	ExpectedPausedAt *time.Time
	UpdatedAt        time.Time
}

// SubscriptionSnapshot is a superseded subscription row kept for history.
type SubscriptionSnapshot struct {
	Id             uuid.UUID
	SubscriptionId uuid.UUID
	UserId         uuid.UUID
	Status         SubscriptionStatus // effective status when superseded
	Subscription   Subscription
	ArchivedAt     time.Time
}
