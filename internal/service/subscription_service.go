package service

import (
	"context"
	"errors"
	"fmt"

	"milk-subscription-be/internal/dto"
	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/internal/repository/cache"
	"milk-subscription-be/internal/repository/contract"
	"milk-subscription-be/internal/repository/specification"
	"milk-subscription-be/pkg/gateway"
	"milk-subscription-be/pkg/pricing"
	"milk-subscription-be/pkg/subscription"
	"milk-subscription-be/pkg/subscription/query"

	"github.com/google/uuid"
)

const webhookModule = "WEBHOOK"

var ErrUnknownProvider = errors.New("payment provider is not enabled")

type ISubscriptionService interface {
	GetPlans(ctx context.Context) []*dto.PlanResponse
	Checkout(ctx context.Context, userId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetCurrent(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionResponse, error)
	GetHistory(ctx context.Context, userId uuid.UUID, page, limit int) ([]*dto.SubscriptionHistoryResponse, error)
	Pause(ctx context.Context, userId, id uuid.UUID) (*dto.SubscriptionResponse, error)
	Resume(ctx context.Context, userId, id uuid.UUID) (*dto.SubscriptionResponse, error)
	Cancel(ctx context.Context, userId, id uuid.UUID, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	HandleWebhook(ctx context.Context, provider string, body []byte, signature string) (*dto.WebhookResponse, error)
}

type subscriptionService struct {
	lifecycle *subscription.Lifecycle
	store     contract.SubscriptionRepository
	cache     cache.SubscriptionCache
	gateway   gateway.Gateway
	log       logger.ILogger
	audit     logger.ILogger
}

func NewSubscriptionService(
	lifecycle *subscription.Lifecycle,
	store contract.SubscriptionRepository,
	subscriptionCache cache.SubscriptionCache,
	gw gateway.Gateway,
	log logger.ILogger,
	audit logger.ILogger,
) ISubscriptionService {
	return &subscriptionService{
		lifecycle: lifecycle,
		store:     store,
		cache:     subscriptionCache,
		gateway:   gw,
		log:       log,
		audit:     audit,
	}
}

func (s *subscriptionService) GetPlans(ctx context.Context) []*dto.PlanResponse {
	offers := pricing.Catalog()
	res := make([]*dto.PlanResponse, 0, len(offers))
	for _, o := range offers {
		res = append(res, &dto.PlanResponse{
			PlanType:      o.PlanType,
			DurationCode:  o.DurationCode,
			BilledDays:    o.BilledDays,
			DeliveredDays: o.DeliveredDays,
			Amount:        o.Amount,
			Currency:      o.Currency,
		})
	}
	return res
}

func (s *subscriptionService) Checkout(ctx context.Context, userId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	amount, err := pricing.ComputeAmount(req.PlanType, req.DurationCode)
	if err != nil {
		return nil, &subscription.Error{Kind: subscription.KindValidation, Message: err.Error()}
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Receipt:  fmt.Sprintf("sub_%s", uuid.NewString()[:18]),
		Amount:   amount,
		Currency: pricing.Currency,
		Notes: map[string]string{
			"user_id":       userId.String(),
			"plan_type":     req.PlanType,
			"duration_code": req.DurationCode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s order: %w", s.gateway.Name(), err)
	}

	return &dto.CheckoutResponse{
		OrderId:     order.Id,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Provider:    s.gateway.Name(),
		KeyId:       s.gateway.KeyId(),
		Token:       order.Token,
		RedirectURL: order.RedirectURL,
	}, nil
}

func (s *subscriptionService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.lifecycle.Create(ctx, subscription.CreateRequest{
		UserId:       userId,
		PlanType:     req.PlanType,
		DurationCode: req.DurationCode,
		Payment: subscription.PaymentAssertion{
			PaymentId: req.PaymentId,
			OrderId:   req.OrderId,
			Signature: req.Signature,
		},
	})
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub), nil
}

// GetCurrent reads through the cache. The cache holds the stored row, so expiry
// is always evaluated against the lifecycle clock here.
func (s *subscriptionService) GetCurrent(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionResponse, error) {
	sub, err := s.cache.Get(ctx, userId)
	if err != nil {
		s.log.Warn("CACHE", "Subscription cache read failed", map[string]interface{}{
			"user_id": userId.String(),
			"error":   err.Error(),
		})
	}

	if sub == nil {
		// The generation is taken before the store read so a transition that
		// commits in between keeps this row out of the cache.
		gen, genErr := s.cache.Generation(ctx, userId)
		if genErr != nil {
			s.log.Warn("CACHE", "Subscription cache generation read failed", map[string]interface{}{
				"user_id": userId.String(),
				"error":   genErr.Error(),
			})
		}

		sub, err = s.store.FindActiveOrRecent(ctx, userId, s.lifecycle.Now())
		if err != nil {
			return nil, fmt.Errorf("load current subscription: %w", err)
		}
		if sub == nil {
			return nil, &subscription.Error{Kind: subscription.KindNotFound, Message: "no subscription for this account"}
		}
		if genErr == nil {
			if _, err := s.cache.SetIfCurrent(ctx, sub, gen); err != nil {
				s.log.Warn("CACHE", "Subscription cache write failed", map[string]interface{}{
					"user_id": userId.String(),
					"error":   err.Error(),
				})
			}
		}
	}

	return s.toResponse(sub), nil
}

func (s *subscriptionService) GetHistory(ctx context.Context, userId uuid.UUID, page, limit int) ([]*dto.SubscriptionHistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	snaps, err := s.store.FindHistory(ctx, userId, specification.Pagination{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return nil, fmt.Errorf("load subscription history: %w", err)
	}

	res := make([]*dto.SubscriptionHistoryResponse, 0, len(snaps))
	for _, snap := range snaps {
		res = append(res, &dto.SubscriptionHistoryResponse{
			Id:             snap.Id,
			SubscriptionId: snap.SubscriptionId,
			Status:         string(snap.Status),
			ArchivedAt:     snap.ArchivedAt,
			Subscription:   *s.toResponseAt(&snap.Subscription, snap),
		})
	}
	return res, nil
}

func (s *subscriptionService) Pause(ctx context.Context, userId, id uuid.UUID) (*dto.SubscriptionResponse, error) {
	if err := s.checkOwner(ctx, userId, id); err != nil {
		return nil, err
	}
	sub, err := s.lifecycle.Pause(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub), nil
}

func (s *subscriptionService) Resume(ctx context.Context, userId, id uuid.UUID) (*dto.SubscriptionResponse, error) {
	if err := s.checkOwner(ctx, userId, id); err != nil {
		return nil, err
	}
	sub, err := s.lifecycle.Resume(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub), nil
}

func (s *subscriptionService) Cancel(ctx context.Context, userId, id uuid.UUID, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := s.checkOwner(ctx, userId, id); err != nil {
		return nil, err
	}
	sub, err := s.lifecycle.Cancel(ctx, id, req.Reason)
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub), nil
}

// checkOwner reports another owner's subscription as not found.
func (s *subscriptionService) checkOwner(ctx context.Context, userId, id uuid.UUID) error {
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load subscription %s: %w", id, err)
	}
	if sub == nil || sub.UserId != userId {
		return &subscription.Error{Kind: subscription.KindNotFound, Message: "subscription not found", SubscriptionId: id}
	}
	return nil
}

// HandleWebhook cancels the subscription backed by a refunded or failed payment.
// Unknown payments and ended or lapsed subscriptions are acknowledged without action
// so the provider stops retrying.
func (s *subscriptionService) HandleWebhook(ctx context.Context, provider string, body []byte, signature string) (*dto.WebhookResponse, error) {
	if provider != s.gateway.Name() {
		return nil, ErrUnknownProvider
	}

	event, err := s.gateway.ParseWebhook(body, signature)
	if err != nil {
		s.audit.Warn(webhookModule, "Rejected webhook", map[string]interface{}{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.audit.Info(webhookModule, "Webhook received", map[string]interface{}{
		"provider":   provider,
		"kind":       string(event.Kind),
		"payment_id": event.PaymentId,
		"order_id":   event.OrderId,
		"raw_status": event.RawStatus,
	})

	res := &dto.WebhookResponse{Kind: string(event.Kind), Action: "ignored"}
	if event.Kind != gateway.WebhookPaymentRefunded && event.Kind != gateway.WebhookPaymentFailed {
		return res, nil
	}

	sub, err := s.store.FindByPaymentID(ctx, event.PaymentId)
	if err != nil {
		return nil, fmt.Errorf("find subscription for payment %s: %w", event.PaymentId, err)
	}
	if sub == nil {
		return res, nil
	}
	res.SubscriptionId = &sub.Id
	if sub.Status.IsTerminal() || query.HasEnded(sub, s.lifecycle.Now()) {
		return res, nil
	}

	reason := fmt.Sprintf("payment %s at %s", event.Kind, provider)
	if _, err := s.lifecycle.Cancel(ctx, sub.Id, reason); err != nil {
		if errors.Is(err, subscription.ErrNotActive) || errors.Is(err, subscription.ErrAlreadyExpired) {
			return res, nil
		}
		return nil, err
	}

	res.Action = "cancelled"
	s.log.Info(webhookModule, "Subscription cancelled by provider event", map[string]interface{}{
		"subscription_id": sub.Id.String(),
		"payment_id":      event.PaymentId,
		"kind":            string(event.Kind),
	})
	return res, nil
}

func (s *subscriptionService) toResponse(sub *entity.Subscription) *dto.SubscriptionResponse {
	return s.toResponseAt(sub, nil)
}

// toResponseAt renders sub as of now, or as of its archival for a history snapshot.
func (s *subscriptionService) toResponseAt(sub *entity.Subscription, snap *entity.SubscriptionSnapshot) *dto.SubscriptionResponse {
	asOf := s.lifecycle.Now()
	if snap != nil {
		asOf = snap.ArchivedAt
	}
	view := query.StatusView(sub, asOf)

	return &dto.SubscriptionResponse{
		Id:                 sub.Id,
		PlanType:           sub.PlanType,
		DurationCode:       sub.DurationCode,
		Amount:             sub.Amount,
		Currency:           sub.Currency,
		Status:             string(view.Status),
		StoredStatus:       string(view.StoredStatus),
		IsActive:           view.IsActive,
		IsExpired:          view.IsExpired,
		RemainingDays:      view.RemainingDays,
		TotalPausedDays:    view.TotalPausedDays,
		StartDate:          sub.StartDate,
		EndDate:            sub.EndDate,
		PausedAt:           sub.PausedAt,
		ResumedAt:          sub.ResumedAt,
		CancelledAt:        sub.CancelledAt,
		CancellationReason: sub.CancellationReason,
		PaymentId:          sub.PaymentId,
		PaymentStatus:      string(sub.PaymentStatus),
		PaymentProvider:    sub.PaymentProvider,
		AsOf:               view.AsOf,
	}
}
