package cache

import (
	"context"
	"fmt"
	"time"

	"milk-subscription-be/internal/entity"

	"github.com/google/uuid"
)

const (
	subscriptionKeyPrefix = "subscription:owner:"
	generationKeyPrefix   = "subscription:gen:"

	DefaultTTL = 5 * time.Minute
)

// SubscriptionCache holds the owner's stored subscription row, never a derived view,
// so expiry is still evaluated against the caller's clock on every read.
//
// Every Invalidate bumps the owner's generation. A read-through fill takes the
// generation before loading the row and passes it to SetIfCurrent, which drops
// the row if a transition invalidated the owner in between.
type SubscriptionCache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, userId uuid.UUID) (*entity.Subscription, error)
	Generation(ctx context.Context, userId uuid.UUID) (int64, error)
	// SetIfCurrent reports whether sub was stored.
	SetIfCurrent(ctx context.Context, sub *entity.Subscription, generation int64) (bool, error)
	Invalidate(ctx context.Context, userId uuid.UUID) error
}

func ownerKey(userId uuid.UUID) string {
	return fmt.Sprintf("%s%s", subscriptionKeyPrefix, userId)
}

func generationKey(userId uuid.UUID) string {
	return fmt.Sprintf("%s%s", generationKeyPrefix, userId)
}
