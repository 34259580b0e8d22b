package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/repository/contract"
	"milk-subscription-be/internal/repository/specification"
	"milk-subscription-be/pkg/subscription/query"

	"github.com/google/uuid"
)

// SubscriptionRepository keeps one row per owner in process memory.
// All writes hold the same lock, so compare-and-set matches the SQL implementation.
type SubscriptionRepository struct {
	mu      sync.RWMutex
	byId    map[uuid.UUID]*entity.Subscription
	byOwner map[uuid.UUID]uuid.UUID
	history map[uuid.UUID][]*entity.SubscriptionSnapshot
	// payments holds every payment id ever stored, archived rows included.
	payments map[string]uuid.UUID
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		byId:     make(map[uuid.UUID]*entity.Subscription),
		byOwner:  make(map[uuid.UUID]uuid.UUID),
		history:  make(map[uuid.UUID][]*entity.SubscriptionSnapshot),
		payments: make(map[string]uuid.UUID),
	}
}

var _ contract.SubscriptionRepository = (*SubscriptionRepository)(nil)

func clone(s *entity.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byId[id]), nil
}

func (r *SubscriptionRepository) FindByPaymentID(ctx context.Context, paymentId string) (*entity.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byId {
		if s.PaymentId == paymentId {
			return clone(s), nil
		}
	}
	return nil, nil
}

func (r *SubscriptionRepository) IsPaymentUsed(ctx context.Context, paymentId string) (bool, error) {
	if paymentId == "" {
		return false, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.payments[paymentId]
	return ok, nil
}

func (r *SubscriptionRepository) FindActiveOrRecent(ctx context.Context, userId uuid.UUID, asOf time.Time) (*entity.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[userId]
	if !ok {
		return nil, nil
	}
	return clone(query.MostRelevant([]*entity.Subscription{r.byId[id]}, asOf)), nil
}

func (r *SubscriptionRepository) CreateOrReplace(ctx context.Context, sub *entity.Subscription, asOf time.Time) (*entity.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.PaymentId != "" {
		if _, used := r.payments[sub.PaymentId]; used {
			return nil, contract.ErrPaymentUsed
		}
	}

	if prevId, ok := r.byOwner[sub.UserId]; ok {
		prev := r.byId[prevId]
		if query.IsActive(prev, asOf) {
			return nil, contract.ErrPreconditionFailed
		}
		r.history[sub.UserId] = append(r.history[sub.UserId], &entity.SubscriptionSnapshot{
			Id:             uuid.New(),
			SubscriptionId: prev.Id,
			UserId:         prev.UserId,
			Status:         query.EffectiveStatus(prev, asOf),
			Subscription:   *prev,
			ArchivedAt:     asOf,
		})
		delete(r.byId, prevId)
	}

	stored := clone(sub)
	r.byId[stored.Id] = stored
	r.byOwner[stored.UserId] = stored.Id
	if stored.PaymentId != "" {
		r.payments[stored.PaymentId] = stored.Id
	}
	return clone(stored), nil
}

func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next entity.SubscriptionStatus, patch entity.SubscriptionPatch) (*entity.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byId[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	if s.Status != expected {
		return nil, contract.ErrPreconditionFailed
	}
	if patch.UnexpiredAt != nil && !s.EndDate.After(*patch.UnexpiredAt) {
		return nil, contract.ErrPreconditionFailed
	}
	if patch.ExpectedPausedAt != nil && (s.PausedAt == nil || !s.PausedAt.Equal(*patch.ExpectedPausedAt)) {
		return nil, contract.ErrPreconditionFailed
	}

	s.Status = next
	s.UpdatedAt = patch.UpdatedAt
	if patch.PausedAt != nil {
		s.PausedAt = patch.PausedAt
	}
	if patch.ResumedAt != nil {
		s.ResumedAt = patch.ResumedAt
	}
	s.TotalPausedDays += patch.AddPausedDays
	if patch.CancelledAt != nil {
		s.CancelledAt = patch.CancelledAt
	}
	if patch.CancellationReason != nil {
		s.CancellationReason = patch.CancellationReason
	}
	return clone(s), nil
}

// FindHistory honours specification.Pagination; other specifications are GORM-only and ignored.
func (r *SubscriptionRepository) FindHistory(ctx context.Context, userId uuid.UUID, specs ...specification.Specification) ([]*entity.SubscriptionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]*entity.SubscriptionSnapshot, 0, len(r.history[userId]))
	for _, h := range r.history[userId] {
		c := *h
		snaps = append(snaps, &c)
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].ArchivedAt.After(snaps[j].ArchivedAt)
	})

	for _, spec := range specs {
		p, ok := spec.(specification.Pagination)
		if !ok {
			continue
		}
		if p.Offset >= len(snaps) {
			return []*entity.SubscriptionSnapshot{}, nil
		}
		snaps = snaps[p.Offset:]
		if p.Limit > 0 && p.Limit < len(snaps) {
			snaps = snaps[:p.Limit]
		}
	}
	return snaps, nil
}
