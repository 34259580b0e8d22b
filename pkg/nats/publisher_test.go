package nats

import (
	"testing"

	"milk-subscription-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "subscriptions.subscription_paused", Subject(events.SubscriptionPaused))
	assert.Equal(t, "subscriptions.subscription_created", Subject(events.SubscriptionCreated))
}
