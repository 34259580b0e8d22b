package mapper

import (
	"encoding/json"
	"fmt"

	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/model"

	"gorm.io/datatypes"
)

type SubscriptionMapper struct{}

func NewSubscriptionMapper() *SubscriptionMapper {
	return &SubscriptionMapper{}
}

func (m *SubscriptionMapper) ToEntity(s *model.Subscription) *entity.Subscription {
	if s == nil {
		return nil
	}
	return &entity.Subscription{
		Id:                 s.Id,
		UserId:             s.UserId,
		PlanType:           s.PlanType,
		DurationCode:       s.DurationCode,
		Amount:             s.Amount,
		Currency:           s.Currency,
		Status:             entity.SubscriptionStatus(s.Status),
		StartDate:          s.StartDate,
		EndDate:            s.EndDate,
		PausedAt:           s.PausedAt,
		ResumedAt:          s.ResumedAt,
		TotalPausedDays:    s.TotalPausedDays,
		PaymentId:          s.PaymentId,
		OrderId:            s.OrderId,
		PaymentStatus:      entity.PaymentStatus(s.PaymentStatus),
		PaymentProvider:    s.PaymentProvider,
		CancelledAt:        s.CancelledAt,
		CancellationReason: s.CancellationReason,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) ToModel(s *entity.Subscription) *model.Subscription {
	if s == nil {
		return nil
	}
	return &model.Subscription{
		Id:                 s.Id,
		UserId:             s.UserId,
		PlanType:           s.PlanType,
		DurationCode:       s.DurationCode,
		Amount:             s.Amount,
		Currency:           s.Currency,
		Status:             string(s.Status),
		StartDate:          s.StartDate,
		EndDate:            s.EndDate,
		PausedAt:           s.PausedAt,
		ResumedAt:          s.ResumedAt,
		TotalPausedDays:    s.TotalPausedDays,
		PaymentId:          s.PaymentId,
		OrderId:            s.OrderId,
		PaymentStatus:      string(s.PaymentStatus),
		PaymentProvider:    s.PaymentProvider,
		CancelledAt:        s.CancelledAt,
		CancellationReason: s.CancellationReason,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (m *SubscriptionMapper) SnapshotToModel(s *entity.SubscriptionSnapshot) (*model.SubscriptionHistory, error) {
	raw, err := json.Marshal(s.Subscription)
	if err != nil {
		return nil, fmt.Errorf("marshal subscription snapshot: %w", err)
	}
	return &model.SubscriptionHistory{
		Id:             s.Id,
		SubscriptionId: s.SubscriptionId,
		UserId:         s.UserId,
		PaymentId:      s.Subscription.PaymentId,
		Status:         string(s.Status),
		Snapshot:       datatypes.JSON(raw),
		ArchivedAt:     s.ArchivedAt,
	}, nil
}

func (m *SubscriptionMapper) SnapshotToEntity(h *model.SubscriptionHistory) (*entity.SubscriptionSnapshot, error) {
	if h == nil {
		return nil, nil
	}
	snap := &entity.SubscriptionSnapshot{
		Id:             h.Id,
		SubscriptionId: h.SubscriptionId,
		UserId:         h.UserId,
		Status:         entity.SubscriptionStatus(h.Status),
		ArchivedAt:     h.ArchivedAt,
	}
	if err := json.Unmarshal(h.Snapshot, &snap.Subscription); err != nil {
		return nil, fmt.Errorf("unmarshal subscription snapshot %s: %w", h.Id, err)
	}
	return snap, nil
}
