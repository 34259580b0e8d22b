package dto

import (
	"time"

	"github.com/google/uuid"
)

// --- Plan DTOs ---

type PlanResponse struct {
	PlanType      string `json:"plan_type"`
	DurationCode  string `json:"duration_code"`
	BilledDays    int    `json:"billed_days"`
	DeliveredDays int    `json:"delivered_days"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// --- Checkout DTOs ---

type CheckoutRequest struct {
	PlanType     string `json:"plan_type" validate:"required,oneof=500ml 1L"`
	DurationCode string `json:"duration_code" validate:"required,oneof=6days 15days"`
}

type CheckoutResponse struct {
	OrderId     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Provider    string `json:"provider"`
	KeyId       string `json:"key_id"`
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// --- Subscription DTOs ---

type CreateSubscriptionRequest struct {
	PlanType     string `json:"plan_type" validate:"required,oneof=500ml 1L"`
	DurationCode string `json:"duration_code" validate:"required,oneof=6days 15days"`
	PaymentId    string `json:"payment_id" validate:"required"`
	OrderId      string `json:"order_id" validate:"required"`
	Signature    string `json:"signature" validate:"required,hexadecimal"`
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type SubscriptionResponse struct {
	Id                 uuid.UUID  `json:"id"`
	PlanType           string     `json:"plan_type"`
	DurationCode       string     `json:"duration_code"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	StoredStatus       string     `json:"stored_status"`
	IsActive           bool       `json:"is_active"`
	IsExpired          bool       `json:"is_expired"`
	RemainingDays      int        `json:"remaining_days"`
	TotalPausedDays    int        `json:"total_paused_days"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	ResumedAt          *time.Time `json:"resumed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	PaymentId          string     `json:"payment_id"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentProvider    string     `json:"payment_provider"`
	AsOf               time.Time  `json:"as_of"`
}

type SubscriptionHistoryResponse struct {
	Id             uuid.UUID            `json:"id"`
	SubscriptionId uuid.UUID            `json:"subscription_id"`
	Status         string               `json:"status"`
	ArchivedAt     time.Time            `json:"archived_at"`
	Subscription   SubscriptionResponse `json:"subscription"`
}

// --- Webhook DTOs ---

type WebhookResponse struct {
	Kind           string     `json:"kind"`
	SubscriptionId *uuid.UUID `json:"subscription_id,omitempty"`
	Action         string     `json:"action"`
}
