package cache

import (
	"context"
	"testing"
	"time"

	"milk-subscription-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubscriptionCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySubscriptionCache(time.Minute)
	owner := uuid.New()

	miss, err := c.Get(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, miss)

	gen, err := c.Generation(ctx, owner)
	require.NoError(t, err)

	sub := &entity.Subscription{Id: uuid.New(), UserId: owner, Status: entity.SubscriptionStatusActive}
	stored, err := c.SetIfCurrent(ctx, sub, gen)
	require.NoError(t, err)
	assert.True(t, stored)

	// later mutations of the caller's value do not leak into the cache
	sub.Status = entity.SubscriptionStatusPaused

	hit, err := c.Get(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, entity.SubscriptionStatusActive, hit.Status)

	require.NoError(t, c.Invalidate(ctx, owner))
	gone, err := c.Get(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemorySubscriptionCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySubscriptionCache(20 * time.Millisecond)
	owner := uuid.New()

	_, err := c.SetIfCurrent(ctx, &entity.Subscription{Id: uuid.New(), UserId: owner}, 0)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		got, _ := c.Get(ctx, owner)
		return got == nil
	}, time.Second, 10*time.Millisecond)
}

func TestMemorySubscriptionCacheSkipsFillAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySubscriptionCache(time.Minute)
	owner := uuid.New()

	gen, err := c.Generation(ctx, owner)
	require.NoError(t, err)

	// a transition lands between the reader's store load and its fill
	require.NoError(t, c.Invalidate(ctx, owner))

	stale := &entity.Subscription{Id: uuid.New(), UserId: owner, Status: entity.SubscriptionStatusActive}
	stored, err := c.SetIfCurrent(ctx, stale, gen)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := c.Get(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, got)

	next, err := c.Generation(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)

	stored, err = c.SetIfCurrent(ctx, stale, next)
	require.NoError(t, err)
	assert.True(t, stored)
}
