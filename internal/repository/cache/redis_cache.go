package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"milk-subscription-be/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// generationTTL bounds how long an idle owner's generation counter is kept.
const generationTTL = 24 * time.Hour

// setIfCurrent writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisSubscriptionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSubscriptionCache(client *redis.Client, ttl time.Duration) *RedisSubscriptionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSubscriptionCache{client: client, ttl: ttl}
}

func (c *RedisSubscriptionCache) Get(ctx context.Context, userId uuid.UUID) (*entity.Subscription, error) {
	data, err := c.client.Get(ctx, ownerKey(userId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached subscription: %w", err)
	}

	var sub entity.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal cached subscription: %w", err)
	}
	return &sub, nil
}

func (c *RedisSubscriptionCache) Generation(ctx context.Context, userId uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(userId)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisSubscriptionCache) SetIfCurrent(ctx context.Context, sub *entity.Subscription, generation int64) (bool, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("marshal subscription: %w", err)
	}

	stored, err := setIfCurrent.Run(ctx, c.client,
		[]string{ownerKey(sub.UserId), generationKey(sub.UserId)},
		strconv.FormatInt(generation, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cache subscription: %w", err)
	}
	return stored == 1, nil
}

func (c *RedisSubscriptionCache) Invalidate(ctx context.Context, userId uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ownerKey(userId))
		pipe.Incr(ctx, generationKey(userId))
		pipe.Expire(ctx, generationKey(userId), generationTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cached subscription: %w", err)
	}
	return nil
}
