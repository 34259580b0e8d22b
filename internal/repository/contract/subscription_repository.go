package contract

import (
	"context"
	"errors"
	"time"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/repository/specification"

	"github.com/google/uuid"
)

var (
	// ErrPreconditionFailed means the row no longer matches the expected state at write time.
	ErrPreconditionFailed = errors.New("precondition failed: subscription state changed")
	ErrNotFound           = errors.New("subscription not found")
	// ErrPaymentUsed means the payment already backs a current or archived subscription.
	ErrPaymentUsed = errors.New("payment already backs a subscription")
)

type SubscriptionRepository interface {
	// Reads return (nil, nil) when nothing matches.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error)
	FindByPaymentID(ctx context.Context, paymentId string) (*entity.Subscription, error)
	// IsPaymentUsed reports whether paymentId backs a current or archived subscription.
	IsPaymentUsed(ctx context.Context, paymentId string) (bool, error)
	// FindActiveOrRecent picks the owner's most relevant subscription:
	// active > paused > expired > cancelled by effective status at asOf, then newest first.
	FindActiveOrRecent(ctx context.Context, userId uuid.UUID, asOf time.Time) (*entity.Subscription, error)

	// CreateOrReplace upserts the owner's subscription row, archiving the row it replaces.
	// Fails with ErrPreconditionFailed if the existing row is active and unexpired at asOf,
	// and with ErrPaymentUsed if sub.PaymentId was ever used before.
	CreateOrReplace(ctx context.Context, sub *entity.Subscription, asOf time.Time) (*entity.Subscription, error)

	// UpdateStatus is a compare-and-set on status. Fails with ErrPreconditionFailed when
	// the stored status is not expected (or the row expired, or paused_at moved, see
	// SubscriptionPatch) and with ErrNotFound when id does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next entity.SubscriptionStatus, patch entity.SubscriptionPatch) (*entity.Subscription, error)

	FindHistory(ctx context.Context, userId uuid.UUID, specs ...specification.Specification) ([]*entity.SubscriptionSnapshot, error)
}
