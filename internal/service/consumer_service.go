package service

import (
	"context"
	"encoding/json"
	"time"

	"milk-subscription-be/internal/pkg/logger"
	"milk-subscription-be/internal/pkg/mailer"
	"milk-subscription-be/internal/repository/contract"
	"milk-subscription-be/internal/repository/specification"
	"milk-subscription-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const eventsModule = "EVENTS"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process bus. Each event is forwarded to the
// external stream and turned into a notification e-mail for the owner.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	forwarder  events.Publisher
	userRepo   contract.UserRepository
	mailer     mailer.IEmailService
	log        logger.ILogger
}

// NewConsumerService accepts a nil forwarder, userRepo or mailer and skips that step.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	forwarder events.Publisher,
	userRepo contract.UserRepository,
	emailService mailer.IEmailService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		forwarder:  forwarder,
		userRepo:   userRepo,
		mailer:     emailService,
		log:        log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	// Failures are logged and the message acked: gochannel redelivers nacks immediately,
	// which would spin on a broker outage.
	defer msg.Ack()

	var event events.BaseEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		cs.log.Error(eventsModule, "Failed to unmarshal event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	if cs.forwarder != nil {
		fwdCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := cs.forwarder.Publish(fwdCtx, event)
		cancel()
		if err != nil {
			cs.log.Warn(eventsModule, "Failed to forward event", map[string]interface{}{
				"event": event.Type,
				"error": err.Error(),
			})
		}
	}

	cs.notifyOwner(ctx, event)
}

func (cs *consumerService) notifyOwner(ctx context.Context, event events.BaseEvent) {
	if cs.userRepo == nil || cs.mailer == nil {
		return
	}

	userIdStr, _ := event.Data["user_id"].(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		cs.log.Warn(eventsModule, "Event has no owner", map[string]interface{}{"event": event.Type})
		return
	}

	user, err := cs.userRepo.FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		cs.log.Error(eventsModule, "Failed to load event owner", map[string]interface{}{
			"user_id": userIdStr,
			"error":   err.Error(),
		})
		return
	}
	if user == nil || user.Email == "" {
		return
	}

	notice := noticeFor(event)
	notice.FullName = user.FullName
	if err := cs.mailer.SendSubscriptionNotice(user.Email, notice); err != nil {
		cs.log.Warn(eventsModule, "Failed to send subscription notice", map[string]interface{}{
			"user_id": userIdStr,
			"error":   err.Error(),
		})
		return
	}
	cs.log.Info(eventsModule, "Subscription notice sent", map[string]interface{}{
		"user_id": userIdStr,
		"event":   event.Type,
	})
}

func noticeFor(event events.BaseEvent) mailer.SubscriptionNotice {
	str := func(key string) string {
		v, _ := event.Data[key].(string)
		return v
	}

	endDate := str("end_date")
	if t, err := time.Parse(time.RFC3339, endDate); err == nil {
		endDate = t.Format("02 Jan 2006")
	}

	n := mailer.SubscriptionNotice{
		PlanType: str("plan_type"),
		Status:   str("status"),
		EndDate:  endDate,
	}

	switch event.Type {
	case events.SubscriptionCreated:
		n.Headline = "Your milk subscription has started"
	case events.SubscriptionPaused:
		n.Headline = "Your milk subscription is paused"
		n.ExtraLine = "Resume any time before the end date to restart deliveries."
	case events.SubscriptionResumed:
		n.Headline = "Your milk subscription is back on"
	case events.SubscriptionCancelled:
		n.Headline = "Your milk subscription was cancelled"
		if reason := str("reason"); reason != "" {
			n.ExtraLine = "Reason: " + reason
		}
	default:
		n.Headline = "Subscription update"
	}
	return n
}
