// Package subscription holds the subscription state machine and the payment
// verification that gates creation.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/internal/repository/contract"
	"milk-subscription-be/pkg/events"
	"milk-subscription-be/pkg/metrics"
	"milk-subscription-be/pkg/pricing"
	"milk-subscription-be/pkg/subscription/query"

	"github.com/google/uuid"
)

const (
	lifecycleModule = "SUBSCRIPTION"

	maxCancelAttempts = 3
)

// CacheInvalidator drops the owner's cached subscription after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userId uuid.UUID) error
}

type CreateRequest struct {
	UserId       uuid.UUID
	PlanType     string
	DurationCode string
	Payment      PaymentAssertion
}

// Lifecycle applies transitions through compare-and-set writes on the store.
// It holds no per-subscription state and is safe for concurrent use.
type Lifecycle struct {
	store     contract.SubscriptionRepository
	verifier  PaymentVerifier
	cache     CacheInvalidator
	publisher events.Publisher
	metrics   metrics.SubscriptionMetrics
	log       logger.ILogger
	clock     Clock
}

// NewLifecycle wires the state machine. cache and publisher may be nil.
func NewLifecycle(
	store contract.SubscriptionRepository,
	verifier PaymentVerifier,
	cache CacheInvalidator,
	publisher events.Publisher,
	m metrics.SubscriptionMetrics,
	log logger.ILogger,
	clock Clock,
) *Lifecycle {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Lifecycle{
		store:     store,
		verifier:  verifier,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		log:       log,
		clock:     clock,
	}
}

func (l *Lifecycle) Now() time.Time {
	return l.clock.Now()
}

func (l *Lifecycle) Create(ctx context.Context, req CreateRequest) (*entity.Subscription, error) {
	sub, err := l.create(ctx, req)
	l.record("create", err)
	if err != nil {
		return nil, err
	}
	l.afterTransition(ctx, events.SubscriptionCreated, sub, nil)
	return sub, nil
}

func (l *Lifecycle) create(ctx context.Context, req CreateRequest) (*entity.Subscription, error) {
	if req.UserId == uuid.Nil {
		return nil, newError(KindValidation, uuid.Nil, "owner id is required", nil)
	}
	days, ok := pricing.DurationDays(req.DurationCode)
	if !ok {
		return nil, newError(KindValidation, uuid.Nil, fmt.Sprintf("unknown duration code %q", req.DurationCode), nil)
	}
	amount, err := pricing.ComputeAmount(req.PlanType, req.DurationCode)
	if err != nil {
		return nil, newError(KindValidation, uuid.Nil, err.Error(), nil)
	}

	now := l.clock.Now()

	current, err := l.store.FindActiveOrRecent(ctx, req.UserId, now)
	if err != nil {
		return nil, fmt.Errorf("load current subscription: %w", err)
	}
	if query.IsActive(current, now) {
		return nil, newError(KindAlreadyActive, current.Id, "owner already has an active subscription", nil)
	}

	verified, err := l.verifier.Verify(ctx, req.Payment, amount)
	if err != nil {
		return nil, err
	}

	used, err := l.store.IsPaymentUsed(ctx, verified.PaymentId)
	if err != nil {
		return nil, fmt.Errorf("check payment reuse: %w", err)
	}
	if used {
		return nil, errPaymentUsed(nil)
	}

	currency := verified.Currency
	if currency == "" {
		currency = pricing.Currency
	}

	sub := &entity.Subscription{
		Id:              uuid.New(),
		UserId:          req.UserId,
		PlanType:        req.PlanType,
		DurationCode:    req.DurationCode,
		Amount:          verified.Amount,
		Currency:        strings.ToUpper(currency),
		Status:          entity.SubscriptionStatusActive,
		StartDate:       now,
		EndDate:         now.AddDate(0, 0, days),
		PaymentId:       verified.PaymentId,
		OrderId:         verified.OrderId,
		PaymentStatus:   verified.Status,
		PaymentProvider: verified.Provider,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := l.store.CreateOrReplace(ctx, sub, now)
	if err != nil {
		switch {
		case errors.Is(err, contract.ErrPreconditionFailed):
			// Another create for the same owner committed first.
			return nil, newError(KindAlreadyActive, uuid.Nil, "owner already has an active subscription", err)
		case errors.Is(err, contract.ErrPaymentUsed):
			return nil, errPaymentUsed(err)
		}
		return nil, fmt.Errorf("persist subscription: %w", err)
	}
	return created, nil
}

func errPaymentUsed(err error) error {
	return newError(KindValidation, uuid.Nil, "payment already backs a subscription", err)
}

func (l *Lifecycle) Pause(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	sub, err := l.pause(ctx, id)
	l.record("pause", err)
	if err != nil {
		return nil, err
	}
	l.afterTransition(ctx, events.SubscriptionPaused, sub, nil)
	return sub, nil
}

func (l *Lifecycle) pause(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	now := l.clock.Now()

	sub, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := pauseGuard(sub, now); err != nil {
		return nil, err
	}

	updated, err := l.store.UpdateStatus(ctx, id, entity.SubscriptionStatusActive, entity.SubscriptionStatusPaused, entity.SubscriptionPatch{
		PausedAt:    &now,
		UnexpiredAt: &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, l.casFailure(ctx, id, err, pauseGuard)
	}
	return updated, nil
}

func pauseGuard(sub *entity.Subscription, now time.Time) error {
	if query.EffectiveStatus(sub, now) == entity.SubscriptionStatusExpired {
		return newError(KindAlreadyExpired, sub.Id, "subscription ended at "+sub.EndDate.Format(time.RFC3339), nil)
	}
	switch sub.Status {
	case entity.SubscriptionStatusActive:
		return nil
	case entity.SubscriptionStatusPaused:
		return newError(KindPreconditionFailed, sub.Id, "subscription is already paused", nil)
	default:
		return newError(KindNotActive, sub.Id, "subscription is "+string(sub.Status), nil)
	}
}

func (l *Lifecycle) Resume(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	sub, err := l.resume(ctx, id)
	l.record("resume", err)
	if err != nil {
		return nil, err
	}
	l.afterTransition(ctx, events.SubscriptionResumed, sub, map[string]interface{}{
		"total_paused_days": sub.TotalPausedDays,
	})
	return sub, nil
}

func (l *Lifecycle) resume(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	now := l.clock.Now()

	sub, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := resumeGuard(sub, now); err != nil {
		return nil, err
	}

	updated, err := l.store.UpdateStatus(ctx, id, entity.SubscriptionStatusPaused, entity.SubscriptionStatusActive, entity.SubscriptionPatch{
		ResumedAt:        &now,
		AddPausedDays:    query.CeilDays(now.Sub(*sub.PausedAt)),
		ExpectedPausedAt: sub.PausedAt,
		UnexpiredAt:      &now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, l.casFailure(ctx, id, err, resumeGuard)
	}
	return updated, nil
}

func resumeGuard(sub *entity.Subscription, now time.Time) error {
	if query.EffectiveStatus(sub, now) == entity.SubscriptionStatusExpired {
		return newError(KindAlreadyExpired, sub.Id, "subscription ended at "+sub.EndDate.Format(time.RFC3339), nil)
	}
	if sub.Status != entity.SubscriptionStatusPaused {
		return newError(KindNotPaused, sub.Id, "subscription is "+string(sub.Status), nil)
	}
	if sub.PausedAt == nil {
		return newError(KindMissingPauseTimestamp, sub.Id, "paused subscription has no pause timestamp", nil)
	}
	return nil
}

// Cancel ends an active or paused subscription that has not reached its end date.
// reason may be empty.
func (l *Lifecycle) Cancel(ctx context.Context, id uuid.UUID, reason string) (*entity.Subscription, error) {
	sub, err := l.cancel(ctx, id, reason)
	l.record("cancel", err)
	if err != nil {
		return nil, err
	}
	l.afterTransition(ctx, events.SubscriptionCancelled, sub, map[string]interface{}{
		"reason": reason,
	})
	return sub, nil
}

func (l *Lifecycle) cancel(ctx context.Context, id uuid.UUID, reason string) (*entity.Subscription, error) {
	var lastErr error
	// Both active and paused may be cancelled, so a lost CAS is retried against the new status.
	for attempt := 0; attempt < maxCancelAttempts; attempt++ {
		now := l.clock.Now()

		sub, err := l.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := cancelGuard(sub, now); err != nil {
			return nil, err
		}

		patch := entity.SubscriptionPatch{
			CancelledAt: &now,
			UnexpiredAt: &now,
			UpdatedAt:   now,
		}
		if reason != "" {
			patch.CancellationReason = &reason
		}

		updated, err := l.store.UpdateStatus(ctx, id, sub.Status, entity.SubscriptionStatusCancelled, patch)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, contract.ErrPreconditionFailed) {
			return nil, storeError(id, err)
		}
		lastErr = err
	}
	return nil, newError(KindPreconditionFailed, id, "subscription kept changing during cancel", lastErr)
}

func cancelGuard(sub *entity.Subscription, now time.Time) error {
	if sub.Status.IsTerminal() {
		return newError(KindNotActive, sub.Id, "subscription is already "+string(sub.Status), nil)
	}
	if query.EffectiveStatus(sub, now) == entity.SubscriptionStatusExpired {
		return newError(KindAlreadyExpired, sub.Id, "subscription ended at "+sub.EndDate.Format(time.RFC3339), nil)
	}
	return nil
}

func (l *Lifecycle) load(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	sub, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subscription %s: %w", id, err)
	}
	if sub == nil {
		return nil, newError(KindNotFound, id, "subscription not found", nil)
	}
	return sub, nil
}

// casFailure turns a failed conditional write into the error the caller should see.
// The row is re-read so a concurrent winner surfaces as PreconditionFailed,
// or as AlreadyExpired when the end date passed in between.
func (l *Lifecycle) casFailure(ctx context.Context, id uuid.UUID, err error, guard func(*entity.Subscription, time.Time) error) error {
	if !errors.Is(err, contract.ErrPreconditionFailed) {
		return storeError(id, err)
	}

	now := l.clock.Now()
	current, loadErr := l.load(ctx, id)
	if loadErr != nil {
		return loadErr
	}
	if guardErr := guard(current, now); errors.Is(guardErr, ErrAlreadyExpired) {
		return guardErr
	}
	return newError(KindPreconditionFailed, id, "subscription changed concurrently", err)
}

func storeError(id uuid.UUID, err error) error {
	if errors.Is(err, contract.ErrNotFound) {
		return newError(KindNotFound, id, "subscription not found", err)
	}
	return fmt.Errorf("update subscription %s: %w", id, err)
}

func (l *Lifecycle) record(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		if kind := KindOf(err); kind != "" {
			outcome = strings.ToLower(string(kind))
		}
	}
	l.metrics.IncTransition(operation, outcome)
}

// afterTransition runs once the write has committed. Failures here are logged only.
func (l *Lifecycle) afterTransition(ctx context.Context, eventType string, sub *entity.Subscription, extra map[string]interface{}) {
	if l.cache != nil {
		if err := l.cache.Invalidate(ctx, sub.UserId); err != nil {
			l.log.Warn("CACHE", "Failed to invalidate subscription cache", map[string]interface{}{
				"user_id": sub.UserId.String(),
				"error":   err.Error(),
			})
		}
	}

	data := map[string]interface{}{
		"subscription_id": sub.Id.String(),
		"user_id":         sub.UserId.String(),
		"status":          string(sub.Status),
		"plan_type":       sub.PlanType,
		"end_date":        sub.EndDate.Format(time.RFC3339),
	}
	for k, v := range extra {
		data[k] = v
	}

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, events.New(eventType, data, l.clock.Now())); err != nil {
			l.log.Warn("EVENTS", "Failed to publish subscription event", map[string]interface{}{
				"event": eventType,
				"error": err.Error(),
			})
		}
	}

	l.log.Info(lifecycleModule, "Subscription "+strings.ToLower(strings.TrimPrefix(eventType, "SUBSCRIPTION_")), data)
}
