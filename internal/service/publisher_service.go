package service

import (
	"context"
	"encoding/json"
	"fmt"

	"milk-subscription-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// IPublisherService puts domain events on the in-process bus.
type IPublisherService interface {
	events.Publisher
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (s *publisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(events.New(event.EventType(), event.Payload(), event.Timestamp()))
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	msg.SetContext(ctx)

	if err := s.publisher.Publish(s.topicName, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", event.EventType(), err)
	}
	return nil
}
