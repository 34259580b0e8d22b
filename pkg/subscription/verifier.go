package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/pkg/gateway"
	"milk-subscription-be/pkg/metrics"

	"github.com/google/uuid"
)

const (
	paymentModule = "PAYMENT"

	DefaultVerifyTimeout = 10 * time.Second
)

// PaymentAssertion is what the client claims after checkout.
type PaymentAssertion struct {
	PaymentId string
	OrderId   string
	Signature string
}

type VerifiedPayment struct {
	PaymentId string
	OrderId   string
	Status    entity.PaymentStatus
	Amount    int64
	Currency  string
	Provider  string
}

type PaymentVerifier interface {
	Verify(ctx context.Context, assertion PaymentAssertion, expectedAmount int64) (*VerifiedPayment, error)
}

// Verifier checks a checkout assertion against the provider. It never writes anything.
type Verifier struct {
	gateway gateway.Gateway
	timeout time.Duration
	metrics metrics.SubscriptionMetrics
	log     logger.ILogger
}

func NewVerifier(gw gateway.Gateway, timeout time.Duration, m metrics.SubscriptionMetrics, log logger.ILogger) *Verifier {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &Verifier{
		gateway: gw,
		timeout: timeout,
		metrics: m,
		log:     log,
	}
}

func (v *Verifier) Verify(ctx context.Context, a PaymentAssertion, expectedAmount int64) (*VerifiedPayment, error) {
	started := time.Now()
	vp, err := v.verify(ctx, a, expectedAmount)

	provider := v.gateway.Name()
	v.metrics.ObserveVerificationDuration(provider, time.Since(started))
	if err != nil {
		v.metrics.IncVerification(provider, strings.ToLower(string(KindOf(err))))
		v.log.Warn(paymentModule, "Payment verification failed", map[string]interface{}{
			"payment_id": a.PaymentId,
			"order_id":   a.OrderId,
			"error":      err.Error(),
		})
		return nil, err
	}

	v.metrics.IncVerification(provider, "verified")
	v.log.Info(paymentModule, "Payment verified", map[string]interface{}{
		"payment_id": vp.PaymentId,
		"status":     string(vp.Status),
		"amount":     vp.Amount,
	})
	return vp, nil
}

func (v *Verifier) verify(ctx context.Context, a PaymentAssertion, expectedAmount int64) (*VerifiedPayment, error) {
	if a.PaymentId == "" || a.OrderId == "" || a.Signature == "" {
		return nil, newError(KindValidation, uuid.Nil, "payment id, order id and signature are required", nil)
	}
	if expectedAmount <= 0 {
		return nil, newError(KindValidation, uuid.Nil, "expected amount must be positive", nil)
	}

	if !v.gateway.VerifyCheckout(a.OrderId, a.PaymentId, a.Signature) {
		return nil, ErrInvalidSignature
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	p, err := v.gateway.FetchPayment(fetchCtx, a.PaymentId)
	if err != nil {
		if errors.Is(err, gateway.ErrPaymentNotFound) {
			return nil, newError(KindPaymentNotFound, uuid.Nil, "payment "+a.PaymentId+" not found at provider", err)
		}
		// Timeouts and transport failures are inconclusive, never a success.
		return nil, newError(KindStatusNotAcceptable, uuid.Nil, "could not confirm payment with provider", err)
	}

	if p.OrderId != a.OrderId {
		return nil, newError(KindInvalidSignature, uuid.Nil, "payment belongs to a different order", nil)
	}

	var status entity.PaymentStatus
	switch p.Status {
	case gateway.StatusAuthorized:
		status = entity.PaymentStatusAuthorized
	case gateway.StatusCaptured:
		status = entity.PaymentStatusCaptured
	default:
		return nil, newError(KindStatusNotAcceptable, uuid.Nil, "payment status is "+string(p.Status), nil)
	}

	if p.Amount != expectedAmount {
		return nil, ErrAmountMismatch
	}

	return &VerifiedPayment{
		PaymentId: a.PaymentId,
		OrderId:   p.OrderId,
		Status:    status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Provider:  v.gateway.Name(),
	}, nil
}
