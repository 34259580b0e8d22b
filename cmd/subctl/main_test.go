package main

import (
	"context"
	"testing"
	"time"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/internal/repository/cache"
	"milk-subscription-be/internal/repository/memory"
	"milk-subscription-be/internal/service"
	"milk-subscription-be/pkg/metrics"
	"milk-subscription-be/pkg/subscription"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOperator(t *testing.T) (*operator, *entity.Subscription) {
	t.Helper()
	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	store := memory.NewSubscriptionRepository()
	subCache := cache.NewMemorySubscriptionCache(time.Minute)
	log := logger.NewNopLogger()

	sub, err := store.CreateOrReplace(context.Background(), &entity.Subscription{
		Id:            uuid.New(),
		UserId:        uuid.New(),
		PlanType:      "500ml",
		DurationCode:  "6days",
		Amount:        30000,
		Currency:      "INR",
		Status:        entity.SubscriptionStatusActive,
		StartDate:     now,
		EndDate:       now.AddDate(0, 0, 7),
		PaymentId:     "pay_cli",
		PaymentStatus: entity.PaymentStatusCaptured,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, now)
	require.NoError(t, err)

	lifecycle := subscription.NewLifecycle(store, nil, subCache, nil, metrics.NewNopMetrics(), log, subscription.NewFixedClock(now.Add(time.Hour)))
	return &operator{
		svc:       service.NewSubscriptionService(lifecycle, store, subCache, nil, log, log),
		lifecycle: lifecycle,
	}, sub
}

func TestOperator_Transitions(t *testing.T) {
	op, sub := newTestOperator(t)
	ctx := context.Background()

	require.NoError(t, op.run(ctx, []string{"status", sub.UserId.String()}))
	require.NoError(t, op.run(ctx, []string{"pause", sub.Id.String()}))

	err := op.run(ctx, []string{"pause", sub.Id.String()})
	assert.ErrorIs(t, err, subscription.ErrPreconditionFailed)

	require.NoError(t, op.run(ctx, []string{"resume", sub.Id.String()}))
	require.NoError(t, op.run(ctx, []string{"cancel", sub.Id.String(), "moved", "away"}))

	err = op.run(ctx, []string{"cancel", sub.Id.String()})
	assert.ErrorIs(t, err, subscription.ErrNotActive)

	require.NoError(t, op.run(ctx, []string{"history", sub.UserId.String()}))
}

func TestOperator_BadInput(t *testing.T) {
	op, _ := newTestOperator(t)
	ctx := context.Background()

	assert.Error(t, op.run(ctx, []string{"status"}))
	assert.Error(t, op.run(ctx, []string{"pause", "nope"}))
	assert.Error(t, op.run(ctx, []string{"renew", uuid.NewString()}))
	assert.ErrorIs(t, op.run(ctx, []string{"status", uuid.NewString()}), subscription.ErrNotFound)
	assert.Error(t, op.run(ctx, []string{"watch"}))
}
