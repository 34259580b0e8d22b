package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/internal/repository/memory"
	"milk-subscription-be/pkg/events"
	"milk-subscription-be/pkg/gateway"
	"milk-subscription-be/pkg/metrics"
	"milk-subscription-be/pkg/subscription/query"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// countingStore records writes so tests can assert that nothing was mutated.
type countingStore struct {
	*memory.SubscriptionRepository
	mu     sync.Mutex
	writes int
}

func (s *countingStore) CreateOrReplace(ctx context.Context, sub *entity.Subscription, asOf time.Time) (*entity.Subscription, error) {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.SubscriptionRepository.CreateOrReplace(ctx, sub, asOf)
}

func (s *countingStore) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next entity.SubscriptionStatus, patch entity.SubscriptionPatch) (*entity.Subscription, error) {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.SubscriptionRepository.UpdateStatus(ctx, id, expected, next, patch)
}

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(ctx context.Context, a PaymentAssertion, expected int64) (*VerifiedPayment, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return &VerifiedPayment{
		PaymentId: a.PaymentId,
		OrderId:   a.OrderId,
		Status:    entity.PaymentStatusCaptured,
		Amount:    expected,
		Currency:  "INR",
		Provider:  "stub",
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
}

func (c *recordingCache) Invalidate(ctx context.Context, userId uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, userId)
	return nil
}

type fixture struct {
	lc        *Lifecycle
	store     *countingStore
	verifier  *stubVerifier
	publisher *recordingPublisher
	cache     *recordingCache
	clock     *FixedClock
}

func newFixture() *fixture {
	f := &fixture{
		store:     &countingStore{SubscriptionRepository: memory.NewSubscriptionRepository()},
		verifier:  &stubVerifier{},
		publisher: &recordingPublisher{},
		cache:     &recordingCache{},
		clock:     NewFixedClock(t0),
	}
	f.lc = NewLifecycle(f.store, f.verifier, f.cache, f.publisher, metrics.NewNopMetrics(), logger.NewNopLogger(), f.clock)
	return f
}

func createRequest(owner uuid.UUID, plan, duration string) CreateRequest {
	paymentId := "pay_" + uuid.NewString()[:8]
	return CreateRequest{
		UserId:       owner,
		PlanType:     plan,
		DurationCode: duration,
		Payment:      signedAssertion("order_"+paymentId, paymentId),
	}
}

func TestLifecycle_Scenario(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	req := createRequest(owner, "500ml", "6days")

	gw := &fakeGateway{payment: &gateway.Payment{
		Id:       req.Payment.PaymentId,
		OrderId:  req.Payment.OrderId,
		Status:   gateway.StatusCaptured,
		Amount:   30000,
		Currency: "INR",
	}}
	store := memory.NewSubscriptionRepository()
	clock := NewFixedClock(t0)
	lc := NewLifecycle(store, newTestVerifier(gw, time.Second), nil, nil, metrics.NewNopMetrics(), logger.NewNopLogger(), clock)

	sub, err := lc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, int64(30000), sub.Amount)
	assert.Equal(t, 7*day, sub.EndDate.Sub(sub.StartDate))
	assert.Equal(t, req.Payment.PaymentId, sub.PaymentId)

	clock.Advance(time.Hour)
	paused, err := lc.Pause(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusPaused, paused.Status)

	clock.Advance(2 * day)
	resumed, err := lc.Resume(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusActive, resumed.Status)
	assert.Equal(t, 2, resumed.TotalPausedDays)

	clock.Set(sub.EndDate.Add(time.Minute))
	stored, err := store.FindByID(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusActive, stored.Status)
	assert.False(t, query.IsActive(stored, clock.Now()))
	assert.Equal(t, entity.SubscriptionStatusExpired, query.EffectiveStatus(stored, clock.Now()))
}

func TestLifecycle_CreateWhileActiveFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()

	first, err := f.lc.Create(ctx, createRequest(owner, "1L", "6days"))
	require.NoError(t, err)

	f.clock.Advance(day)
	_, err = f.lc.Create(ctx, createRequest(owner, "500ml", "15days"))
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, 1, f.verifier.calls, "provider must not be consulted")

	current, err := f.store.FindActiveOrRecent(ctx, owner, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, first.Id, current.Id)
}

func TestLifecycle_CreateAfterExpirySupersedes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()

	first, err := f.lc.Create(ctx, createRequest(owner, "500ml", "6days"))
	require.NoError(t, err)

	f.clock.Set(first.EndDate.Add(time.Hour))
	second, err := f.lc.Create(ctx, createRequest(owner, "1L", "15days"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)
	assert.Equal(t, int64(9500*15), second.Amount)

	history, err := f.store.FindHistory(ctx, owner)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.Id, history[0].SubscriptionId)
	assert.Equal(t, entity.SubscriptionStatusExpired, history[0].Status)
}

func TestLifecycle_DurationMapping(t *testing.T) {
	tests := []struct {
		duration string
		want     time.Duration
	}{
		{duration: "6days", want: 7 * day},
		{duration: "15days", want: 17 * day},
	}

	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			f := newFixture()
			sub, err := f.lc.Create(context.Background(), createRequest(uuid.New(), "500ml", tt.duration))
			require.NoError(t, err)
			assert.Equal(t, tt.want, sub.EndDate.Sub(sub.StartDate))
		})
	}
}

func TestLifecycle_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		req  CreateRequest
	}{
		{name: "unknown plan", req: createRequest(uuid.New(), "2L", "6days")},
		{name: "unknown duration", req: createRequest(uuid.New(), "500ml", "30days")},
		{name: "missing owner", req: createRequest(uuid.Nil, "500ml", "6days")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.lc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 0, f.verifier.calls)
			assert.Equal(t, 0, f.store.writes)
		})
	}
}

func TestLifecycle_PaymentGating(t *testing.T) {
	failures := []error{ErrInvalidSignature, ErrPaymentNotFound, ErrStatusNotAcceptable, ErrAmountMismatch}

	for _, failure := range failures {
		t.Run(failure.(*Error).Message, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			f.verifier.err = failure
			owner := uuid.New()

			_, err := f.lc.Create(ctx, createRequest(owner, "500ml", "6days"))
			assert.ErrorIs(t, err, failure)
			assert.Equal(t, 0, f.store.writes)
			assert.Empty(t, f.publisher.types())

			current, err := f.store.FindActiveOrRecent(ctx, owner, f.clock.Now())
			require.NoError(t, err)
			assert.Nil(t, current)
		})
	}
}

func TestLifecycle_PaymentCannotBeReused(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()

	req := createRequest(owner, "500ml", "6days")
	first, err := f.lc.Create(ctx, req)
	require.NoError(t, err)

	f.clock.Set(first.EndDate.Add(time.Hour))
	_, err = f.lc.Create(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLifecycle_PaymentCannotBeReusedAfterSupersede(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()

	p := createRequest(owner, "500ml", "6days")
	first, err := f.lc.Create(ctx, p)
	require.NoError(t, err)

	f.clock.Set(first.EndDate.Add(time.Hour))
	second, err := f.lc.Create(ctx, createRequest(owner, "500ml", "6days"))
	require.NoError(t, err)

	// p now only lives in history
	f.clock.Set(second.EndDate.Add(time.Hour))
	writes := f.store.writes
	_, err = f.lc.Create(ctx, p)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, writes, f.store.writes)

	current, err := f.store.FindActiveOrRecent(ctx, owner, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, second.Id, current.Id)

	// another owner cannot pick it up either
	_, err = f.lc.Create(ctx, CreateRequest{
		UserId:       uuid.New(),
		PlanType:     p.PlanType,
		DurationCode: p.DurationCode,
		Payment:      p.Payment,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLifecycle_PauseGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("already paused", func(t *testing.T) {
		f := newFixture()
		sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
		require.NoError(t, err)
		_, err = f.lc.Pause(ctx, sub.Id)
		require.NoError(t, err)

		_, err = f.lc.Pause(ctx, sub.Id)
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture()
		sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
		require.NoError(t, err)
		_, err = f.lc.Cancel(ctx, sub.Id, "")
		require.NoError(t, err)

		_, err = f.lc.Pause(ctx, sub.Id)
		assert.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("past end date with stale active status", func(t *testing.T) {
		f := newFixture()
		sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
		require.NoError(t, err)

		f.clock.Set(sub.EndDate.Add(time.Second))
		writes := f.store.writes
		_, err = f.lc.Pause(ctx, sub.Id)
		assert.ErrorIs(t, err, ErrAlreadyExpired)
		assert.Equal(t, writes, f.store.writes)
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture()
		_, err := f.lc.Pause(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLifecycle_ResumeAfterExpiryFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
	require.NoError(t, err)
	_, err = f.lc.Pause(ctx, sub.Id)
	require.NoError(t, err)

	f.clock.Set(sub.EndDate.Add(day))
	_, err = f.lc.Resume(ctx, sub.Id)
	assert.ErrorIs(t, err, ErrAlreadyExpired)

	stored, err := f.store.FindByID(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusPaused, stored.Status)
	assert.Equal(t, 0, stored.TotalPausedDays)
}

func TestLifecycle_ResumeGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("not paused", func(t *testing.T) {
		f := newFixture()
		sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
		require.NoError(t, err)

		_, err = f.lc.Resume(ctx, sub.Id)
		assert.ErrorIs(t, err, ErrNotPaused)
	})

	t.Run("paused row without pause timestamp", func(t *testing.T) {
		f := newFixture()
		broken := &entity.Subscription{
			Id:        uuid.New(),
			UserId:    uuid.New(),
			Status:    entity.SubscriptionStatusPaused,
			StartDate: t0,
			EndDate:   t0.Add(7 * day),
		}
		_, err := f.store.SubscriptionRepository.CreateOrReplace(ctx, broken, t0)
		require.NoError(t, err)

		_, err = f.lc.Resume(ctx, broken.Id)
		assert.ErrorIs(t, err, ErrMissingPauseTimestamp)
	})
}

func TestLifecycle_PauseAccountingIsAdditive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "15days"))
	require.NoError(t, err)

	_, err = f.lc.Pause(ctx, sub.Id)
	require.NoError(t, err)
	f.clock.Advance(3 * day)
	resumed, err := f.lc.Resume(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, 3, resumed.TotalPausedDays)

	f.clock.Advance(day)
	_, err = f.lc.Pause(ctx, sub.Id)
	require.NoError(t, err)
	// partial days round up
	f.clock.Advance(day + 2*time.Hour)
	resumed, err = f.lc.Resume(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, 5, resumed.TotalPausedDays)
	assert.Equal(t, sub.EndDate, resumed.EndDate)
}

func TestLifecycle_ConcurrentPause(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
	require.NoError(t, err)

	const callers = 2
	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.lc.Pause(ctx, sub.Id)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	}
	assert.Equal(t, 1, succeeded)
}

func TestLifecycle_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	owner := uuid.New()
	sub, err := f.lc.Create(ctx, createRequest(owner, "500ml", "6days"))
	require.NoError(t, err)
	_, err = f.lc.Pause(ctx, sub.Id)
	require.NoError(t, err)

	cancelled, err := f.lc.Cancel(ctx, sub.Id, "moving away")
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "moving away", *cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.lc.Cancel(ctx, sub.Id, "")
	assert.ErrorIs(t, err, ErrNotActive)

	assert.Equal(t, []string{events.SubscriptionCreated, events.SubscriptionPaused, events.SubscriptionCancelled}, f.publisher.types())
	assert.Equal(t, []uuid.UUID{owner, owner, owner}, f.cache.invalidated)
}

func TestLifecycle_CancelAfterEndDateFails(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		paused bool
	}{
		{name: "stale active"},
		{name: "paused", paused: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
			require.NoError(t, err)
			if tt.paused {
				_, err = f.lc.Pause(ctx, sub.Id)
				require.NoError(t, err)
			}

			f.clock.Set(sub.EndDate.Add(day))
			writes := f.store.writes
			_, err = f.lc.Cancel(ctx, sub.Id, "too late")
			assert.ErrorIs(t, err, ErrAlreadyExpired)
			assert.Equal(t, writes, f.store.writes)

			stored, err := f.store.FindByID(ctx, sub.Id)
			require.NoError(t, err)
			assert.Nil(t, stored.CancelledAt)
			assert.Equal(t, entity.SubscriptionStatusExpired, query.EffectiveStatus(stored, f.clock.Now()))
		})
	}
}

// resumeRaceStore lets a full resume and re-pause land between a resume's read and its write.
type resumeRaceStore struct {
	*memory.SubscriptionRepository
	between func()
}

func (s *resumeRaceStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	sub, err := s.SubscriptionRepository.FindByID(ctx, id)
	if between := s.between; between != nil {
		s.between = nil
		between()
	}
	return sub, err
}

func TestLifecycle_StaleResumeDoesNotDoubleCountPausedDays(t *testing.T) {
	ctx := context.Background()
	store := &resumeRaceStore{SubscriptionRepository: memory.NewSubscriptionRepository()}
	clock := NewFixedClock(t0)
	lc := NewLifecycle(store, &stubVerifier{}, nil, nil, metrics.NewNopMetrics(), logger.NewNopLogger(), clock)

	sub, err := lc.Create(ctx, createRequest(uuid.New(), "500ml", "15days"))
	require.NoError(t, err)
	_, err = lc.Pause(ctx, sub.Id)
	require.NoError(t, err)
	clock.Advance(3 * day)

	store.between = func() {
		resumed, err := lc.Resume(ctx, sub.Id)
		require.NoError(t, err)
		require.Equal(t, 3, resumed.TotalPausedDays)
		_, err = lc.Pause(ctx, sub.Id)
		require.NoError(t, err)
	}

	_, err = lc.Resume(ctx, sub.Id)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	stored, err := store.FindByID(ctx, sub.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusPaused, stored.Status)
	assert.Equal(t, 3, stored.TotalPausedDays)
}

func TestLifecycle_PublishFailureDoesNotFailTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.publisher.err = errors.New("bus down")

	sub, err := f.lc.Create(ctx, createRequest(uuid.New(), "500ml", "6days"))
	require.NoError(t, err)
	assert.Equal(t, entity.SubscriptionStatusActive, sub.Status)
}
