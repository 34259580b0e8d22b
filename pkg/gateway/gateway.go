package gateway

import (
	"context"
	"errors"
)

type PaymentStatus string

const (
	StatusCreated    PaymentStatus = "created"
	StatusAuthorized PaymentStatus = "authorized"
	StatusCaptured   PaymentStatus = "captured"
	StatusRefunded   PaymentStatus = "refunded"
	StatusFailed     PaymentStatus = "failed"
	StatusPending    PaymentStatus = "pending"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Payment is the provider's current view of a payment. Amount is in minor units.
type Payment struct {
	Id       string
	OrderId  string
	Status   PaymentStatus
	Amount   int64
	Currency string
}

type OrderRequest struct {
	Receipt  string
	Amount   int64
	Currency string
	Notes    map[string]string
}

type Order struct {
	Id          string
	Amount      int64
	Currency    string
	Token       string // Midtrans snap token
	RedirectURL string
}

type WebhookEventKind string

const (
	WebhookPaymentCaptured WebhookEventKind = "payment.captured"
	WebhookPaymentFailed   WebhookEventKind = "payment.failed"
	WebhookPaymentRefunded WebhookEventKind = "payment.refunded"
	WebhookIgnored         WebhookEventKind = "ignored"
)

type WebhookEvent struct {
	Kind      WebhookEventKind
	PaymentId string
	OrderId   string
	RawStatus string
}

// Gateway abstracts a payment provider.
type Gateway interface {
	Name() string
	// KeyId is the public key handed to the checkout widget.
	KeyId() string
	// VerifyCheckout checks the signature the checkout widget returned for orderId and paymentId.
	VerifyCheckout(orderId, paymentId, signature string) bool
	FetchPayment(ctx context.Context, paymentId string) (*Payment, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// ParseWebhook authenticates and decodes a provider callback body.
	ParseWebhook(body []byte, signature string) (*WebhookEvent, error)
}

// Do runs a blocking provider SDK call and stops waiting when ctx is done.
// The SDK clients used here take no context, so the call itself keeps
// running in the background until its own HTTP timeout.
func Do[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := call()
		ch <- result{val: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.val, r.err
	}
}
