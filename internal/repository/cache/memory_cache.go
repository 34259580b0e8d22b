package cache

import (
	"context"
	"sync"
	"time"

	"milk-subscription-be/internal/entity"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

type MemorySubscriptionCache struct {
	// mu makes the generation check and the write in SetIfCurrent one step.
	mu    sync.Mutex
	cache *gocache.Cache
}

func NewMemorySubscriptionCache(ttl time.Duration) *MemorySubscriptionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemorySubscriptionCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *MemorySubscriptionCache) Get(ctx context.Context, userId uuid.UUID) (*entity.Subscription, error) {
	if x, found := c.cache.Get(ownerKey(userId)); found {
		sub := *x.(*entity.Subscription)
		return &sub, nil
	}
	return nil, nil
}

func (c *MemorySubscriptionCache) Generation(ctx context.Context, userId uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation(userId), nil
}

func (c *MemorySubscriptionCache) generation(userId uuid.UUID) int64 {
	if x, found := c.cache.Get(generationKey(userId)); found {
		return x.(int64)
	}
	return 0
}

func (c *MemorySubscriptionCache) SetIfCurrent(ctx context.Context, sub *entity.Subscription, generation int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation(sub.UserId) != generation {
		return false, nil
	}
	stored := *sub
	c.cache.Set(ownerKey(sub.UserId), &stored, gocache.DefaultExpiration)
	return true, nil
}

func (c *MemorySubscriptionCache) Invalidate(ctx context.Context, userId uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(ownerKey(userId))
	c.cache.Set(generationKey(userId), c.generation(userId)+1, gocache.NoExpiration)
	return nil
}
