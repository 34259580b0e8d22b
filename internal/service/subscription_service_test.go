package service

import (
	"context"
	"testing"
	"time"

	"milk-subscription-be/internal/dto"
	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/internal/repository/cache"
	"milk-subscription-be/internal/repository/memory"
	"milk-subscription-be/pkg/gateway"
	"milk-subscription-be/pkg/metrics"
	"milk-subscription-be/pkg/subscription"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceSecret = "svc_secret"

type webhookGateway struct {
	event   *gateway.WebhookEvent
	payment *gateway.Payment
}

func (g *webhookGateway) Name() string  { return "razorpay" }
func (g *webhookGateway) KeyId() string { return "rzp_key" }

func (g *webhookGateway) VerifyCheckout(orderId, paymentId, signature string) bool {
	return gateway.VerifyHMAC(serviceSecret, gateway.CheckoutPayload(orderId, paymentId), signature)
}

func (g *webhookGateway) FetchPayment(ctx context.Context, paymentId string) (*gateway.Payment, error) {
	if g.payment == nil || g.payment.Id != paymentId {
		return nil, gateway.ErrPaymentNotFound
	}
	return g.payment, nil
}

func (g *webhookGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	return &gateway.Order{Id: "order_checkout", Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *webhookGateway) ParseWebhook(body []byte, signature string) (*gateway.WebhookEvent, error) {
	if signature != "good" {
		return nil, gateway.ErrInvalidSignature
	}
	return g.event, nil
}

// interleavingStore runs during once, right after the next current-subscription read.
type interleavingStore struct {
	*memory.SubscriptionRepository
	during func()
}

func (s *interleavingStore) FindActiveOrRecent(ctx context.Context, userId uuid.UUID, asOf time.Time) (*entity.Subscription, error) {
	sub, err := s.SubscriptionRepository.FindActiveOrRecent(ctx, userId, asOf)
	if during := s.during; during != nil {
		s.during = nil
		during()
	}
	return sub, err
}

type serviceFixture struct {
	svc   ISubscriptionService
	gw    *webhookGateway
	store *interleavingStore
	clock *subscription.FixedClock
}

func newServiceFixture() *serviceFixture {
	gw := &webhookGateway{}
	store := &interleavingStore{SubscriptionRepository: memory.NewSubscriptionRepository()}
	subCache := cache.NewMemorySubscriptionCache(time.Minute)
	clock := subscription.NewFixedClock(time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))
	log := logger.NewNopLogger()

	verifier := subscription.NewVerifier(gw, time.Second, metrics.NewNopMetrics(), log)
	lifecycle := subscription.NewLifecycle(store, verifier, subCache, nil, metrics.NewNopMetrics(), log, clock)

	return &serviceFixture{
		svc:   NewSubscriptionService(lifecycle, store, subCache, gw, log, log),
		gw:    gw,
		store: store,
		clock: clock,
	}
}

// subscribe creates a 500ml six-day subscription paid with paymentId.
func (f *serviceFixture) subscribe(t *testing.T, owner uuid.UUID, paymentId string) *dto.SubscriptionResponse {
	t.Helper()
	f.gw.payment = &gateway.Payment{Id: paymentId, OrderId: "order_" + paymentId, Status: gateway.StatusCaptured, Amount: 30000, Currency: "INR"}

	res, err := f.svc.Create(context.Background(), owner, &dto.CreateSubscriptionRequest{
		PlanType:     "500ml",
		DurationCode: "6days",
		PaymentId:    paymentId,
		OrderId:      "order_" + paymentId,
		Signature:    gateway.SignHMAC(serviceSecret, gateway.CheckoutPayload("order_"+paymentId, paymentId)),
	})
	require.NoError(t, err)
	return res
}

func TestSubscriptionService_GetPlans(t *testing.T) {
	f := newServiceFixture()
	plans := f.svc.GetPlans(context.Background())

	require.Len(t, plans, 4)
	assert.Equal(t, "1L", plans[0].PlanType)
	for _, p := range plans {
		assert.Equal(t, "INR", p.Currency)
		assert.Positive(t, p.Amount)
	}
}

func TestSubscriptionService_Checkout(t *testing.T) {
	f := newServiceFixture()

	res, err := f.svc.Checkout(context.Background(), uuid.New(), &dto.CheckoutRequest{PlanType: "1L", DurationCode: "15days"})
	require.NoError(t, err)
	assert.Equal(t, "order_checkout", res.OrderId)
	assert.Equal(t, int64(9500*15), res.Amount)
	assert.Equal(t, "rzp_key", res.KeyId)

	_, err = f.svc.Checkout(context.Background(), uuid.New(), &dto.CheckoutRequest{PlanType: "2L", DurationCode: "15days"})
	assert.ErrorIs(t, err, subscription.ErrValidation)
}

func TestSubscriptionService_GetCurrent(t *testing.T) {
	f := newServiceFixture()
	owner := uuid.New()

	_, err := f.svc.GetCurrent(context.Background(), owner)
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	created := f.subscribe(t, owner, "pay_current")
	assert.Equal(t, 7, created.RemainingDays)

	cur, err := f.svc.GetCurrent(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, cur.IsActive)
	assert.Equal(t, created.Id, cur.Id)

	// cached row is still judged against the clock
	f.clock.Advance(8 * 24 * time.Hour)
	cur, err = f.svc.GetCurrent(context.Background(), owner)
	require.NoError(t, err)
	assert.False(t, cur.IsActive)
	assert.Equal(t, "expired", cur.Status)
	assert.Equal(t, "active", cur.StoredStatus)
	assert.Zero(t, cur.RemainingDays)
}

func TestSubscriptionService_GetCurrentDoesNotCacheRowReadBeforeTransition(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	owner := uuid.New()
	created := f.subscribe(t, owner, "pay_racing")

	f.store.during = func() {
		_, err := f.svc.Pause(ctx, owner, created.Id)
		require.NoError(t, err)
	}

	// this read loaded the row before the pause committed
	stale, err := f.svc.GetCurrent(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "active", stale.Status)

	cur, err := f.svc.GetCurrent(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "paused", cur.Status)
}

func TestSubscriptionService_OwnershipIsEnforced(t *testing.T) {
	f := newServiceFixture()
	owner := uuid.New()
	created := f.subscribe(t, owner, "pay_owned")

	_, err := f.svc.Pause(context.Background(), uuid.New(), created.Id)
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	_, err = f.svc.Cancel(context.Background(), uuid.New(), created.Id, &dto.CancelSubscriptionRequest{})
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	paused, err := f.svc.Pause(context.Background(), owner, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "paused", paused.Status)

	f.clock.Advance(2 * 24 * time.Hour)
	resumed, err := f.svc.Resume(context.Background(), owner, created.Id)
	require.NoError(t, err)
	assert.Equal(t, "active", resumed.Status)
	assert.Equal(t, 2, resumed.TotalPausedDays)
}

func TestSubscriptionService_GetHistory(t *testing.T) {
	f := newServiceFixture()
	owner := uuid.New()
	first := f.subscribe(t, owner, "pay_first")

	f.clock.Advance(8 * 24 * time.Hour)
	second := f.subscribe(t, owner, "pay_second")
	assert.NotEqual(t, first.Id, second.Id)

	history, err := f.svc.GetHistory(context.Background(), owner, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.Id, history[0].SubscriptionId)
	assert.Equal(t, "expired", history[0].Status)
	assert.Equal(t, "pay_first", history[0].Subscription.PaymentId)
}

func TestSubscriptionService_HandleWebhook(t *testing.T) {
	f := newServiceFixture()
	owner := uuid.New()
	created := f.subscribe(t, owner, "pay_refund")

	t.Run("bad signature", func(t *testing.T) {
		_, err := f.svc.HandleWebhook(context.Background(), "razorpay", []byte(`{}`), "bad")
		assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
	})

	t.Run("other provider", func(t *testing.T) {
		_, err := f.svc.HandleWebhook(context.Background(), "midtrans", []byte(`{}`), "good")
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("captured is ignored", func(t *testing.T) {
		f.gw.event = &gateway.WebhookEvent{Kind: gateway.WebhookPaymentCaptured, PaymentId: "pay_refund"}
		res, err := f.svc.HandleWebhook(context.Background(), "razorpay", []byte(`{}`), "good")
		require.NoError(t, err)
		assert.Equal(t, "ignored", res.Action)
	})

	t.Run("unknown payment is acknowledged", func(t *testing.T) {
		f.gw.event = &gateway.WebhookEvent{Kind: gateway.WebhookPaymentRefunded, PaymentId: "pay_unknown"}
		res, err := f.svc.HandleWebhook(context.Background(), "razorpay", []byte(`{}`), "good")
		require.NoError(t, err)
		assert.Equal(t, "ignored", res.Action)
		assert.Nil(t, res.SubscriptionId)
	})

	t.Run("refund cancels", func(t *testing.T) {
		f.gw.event = &gateway.WebhookEvent{Kind: gateway.WebhookPaymentRefunded, PaymentId: "pay_refund"}
		res, err := f.svc.HandleWebhook(context.Background(), "razorpay", []byte(`{}`), "good")
		require.NoError(t, err)
		assert.Equal(t, "cancelled", res.Action)
		require.NotNil(t, res.SubscriptionId)
		assert.Equal(t, created.Id, *res.SubscriptionId)

		stored, err := f.store.FindByID(context.Background(), created.Id)
		require.NoError(t, err)
		assert.Equal(t, entity.SubscriptionStatusCancelled, stored.Status)
	})

	t.Run("repeat delivery is a no-op", func(t *testing.T) {
		res, err := f.svc.HandleWebhook(context.Background(), "razorpay", []byte(`{}`), "good")
		require.NoError(t, err)
		assert.Equal(t, "ignored", res.Action)
	})
}

func TestSubscriptionService_HandleWebhookIgnoresLapsedSubscription(t *testing.T) {
	f := newServiceFixture()
	created := f.subscribe(t, uuid.New(), "pay_lapsed")

	f.clock.Advance(8 * 24 * time.Hour)
	f.gw.event = &gateway.WebhookEvent{Kind: gateway.WebhookPaymentRefunded, PaymentId: "pay_lapsed"}
	res, err := f.svc.HandleWebhook(context.Background(), "razorpay", []byte(`{}`), "good")
	require.NoError(t, err)
	assert.Equal(t, "ignored", res.Action)

	stored, err := f.store.FindByID(context.Background(), created.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusActive, stored.Status)
	assert.Nil(t, stored.CancelledAt)
}
