package implementation

import (
	"context"
	"errors"
	"time"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/mapper"
	"milk-subscription-be/internal/model"
	"milk-subscription-be/internal/repository/contract"
	"milk-subscription-be/internal/repository/specification"
	"milk-subscription-be/pkg/subscription/query"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertColumns are overwritten when a new subscription replaces the owner's row.
var upsertColumns = []string{
	"id", "plan_type", "duration_code", "amount", "currency", "status",
	"start_date", "end_date", "paused_at", "resumed_at", "total_paused_days",
	"payment_id", "order_id", "payment_status", "payment_provider",
	"cancelled_at", "cancellation_reason", "created_at", "updated_at",
}

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SubscriptionMapper
}

func NewSubscriptionRepository(db *gorm.DB) contract.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSubscriptionMapper(),
	}
}

func (r *SubscriptionRepositoryImpl) findOne(db *gorm.DB, specs ...specification.Specification) (*entity.Subscription, error) {
	var m model.Subscription
	if err := specification.ApplyAll(db, specs...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SubscriptionRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.Subscription, error) {
	return r.findOne(r.db.WithContext(ctx), specification.ByID{ID: id})
}

func (r *SubscriptionRepositoryImpl) FindByPaymentID(ctx context.Context, paymentId string) (*entity.Subscription, error) {
	return r.findOne(r.db.WithContext(ctx), specification.ByPaymentID{PaymentID: paymentId})
}

func (r *SubscriptionRepositoryImpl) IsPaymentUsed(ctx context.Context, paymentId string) (bool, error) {
	return r.paymentUsed(r.db.WithContext(ctx), paymentId)
}

// paymentUsed looks for paymentId in current rows and in archived snapshots.
func (r *SubscriptionRepositoryImpl) paymentUsed(db *gorm.DB, paymentId string) (bool, error) {
	if paymentId == "" {
		return false, nil
	}
	for _, m := range []interface{}{&model.Subscription{}, &model.SubscriptionHistory{}} {
		var n int64
		if err := specification.ApplyAll(db.Model(m), specification.ByPaymentID{PaymentID: paymentId}).Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *SubscriptionRepositoryImpl) FindActiveOrRecent(ctx context.Context, userId uuid.UUID, asOf time.Time) (*entity.Subscription, error) {
	var models []*model.Subscription
	err := specification.ApplyAll(r.db.WithContext(ctx),
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	).Find(&models).Error
	if err != nil {
		return nil, err
	}

	subs := make([]*entity.Subscription, len(models))
	for i, m := range models {
		subs[i] = r.mapper.ToEntity(m)
	}
	return query.MostRelevant(subs, asOf), nil
}

func (r *SubscriptionRepositoryImpl) CreateOrReplace(ctx context.Context, sub *entity.Subscription, asOf time.Time) (*entity.Subscription, error) {
	m := r.mapper.ToModel(sub)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		used, err := r.paymentUsed(tx, sub.PaymentId)
		if err != nil {
			return err
		}
		if used {
			return contract.ErrPaymentUsed
		}

		prev, err := r.findOne(tx, specification.UserOwnedBy{UserID: sub.UserId})
		if err != nil {
			return err
		}

		if prev != nil {
			if query.IsActive(prev, asOf) {
				return contract.ErrPreconditionFailed
			}
			h, err := r.mapper.SnapshotToModel(&entity.SubscriptionSnapshot{
				Id:             uuid.New(),
				SubscriptionId: prev.Id,
				UserId:         prev.UserId,
				Status:         query.EffectiveStatus(prev, asOf),
				Subscription:   *prev,
				ArchivedAt:     asOf,
			})
			if err != nil {
				return err
			}
			if err := tx.Create(h).Error; err != nil {
				return err
			}
		}

		// A concurrent create may have committed a live row since the read above;
		// the conflict WHERE re-checks against the committed row.
		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{
					SQL:  "NOT (subscriptions.status = ? AND subscriptions.end_date > ?)",
					Vars: []interface{}{string(entity.SubscriptionStatusActive), asOf},
				},
			}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(m)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				// payment_id is unique across current rows
				return contract.ErrPaymentUsed
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return contract.ErrPreconditionFailed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.mapper.ToEntity(m), nil
}

func (r *SubscriptionRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next entity.SubscriptionStatus, patch entity.SubscriptionPatch) (*entity.Subscription, error) {
	updates := map[string]interface{}{
		"status":     string(next),
		"updated_at": patch.UpdatedAt,
	}
	if patch.PausedAt != nil {
		updates["paused_at"] = *patch.PausedAt
	}
	if patch.ResumedAt != nil {
		updates["resumed_at"] = *patch.ResumedAt
	}
	if patch.AddPausedDays > 0 {
		updates["total_paused_days"] = gorm.Expr("total_paused_days + ?", patch.AddPausedDays)
	}
	if patch.CancelledAt != nil {
		updates["cancelled_at"] = *patch.CancelledAt
	}
	if patch.CancellationReason != nil {
		updates["cancellation_reason"] = *patch.CancellationReason
	}

	var updated *entity.Subscription
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Subscription{}).Where("id = ? AND status = ?", id, string(expected))
		if patch.UnexpiredAt != nil {
			q = q.Where("end_date > ?", *patch.UnexpiredAt)
		}
		if patch.ExpectedPausedAt != nil {
			q = q.Where("paused_at = ?", *patch.ExpectedPausedAt)
		}

		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}

		current, err := r.findOne(tx, specification.ByID{ID: id})
		if err != nil {
			return err
		}
		if current == nil {
			return contract.ErrNotFound
		}
		if res.RowsAffected == 0 {
			return contract.ErrPreconditionFailed
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *SubscriptionRepositoryImpl) FindHistory(ctx context.Context, userId uuid.UUID, specs ...specification.Specification) ([]*entity.SubscriptionSnapshot, error) {
	var models []*model.SubscriptionHistory
	base := []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.NewestArchived{},
	}
	if err := specification.ApplyAll(r.db.WithContext(ctx), append(base, specs...)...).Find(&models).Error; err != nil {
		return nil, err
	}

	snaps := make([]*entity.SubscriptionSnapshot, 0, len(models))
	for _, m := range models {
		s, err := r.mapper.SnapshotToEntity(m)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}
