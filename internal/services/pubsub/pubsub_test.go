package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	ps := New()
	sub := ps.Subscribe(TopicWiFiState, 10)

	ps.Publish(TopicWiFiState, "CONNECTED")

	select {
	case msg := <-sub.Channel:
		assert.Equal(t, "CONNECTED", msg)
	default:
		t.Fatal("expected a message on the subscriber channel")
	}
}

func TestPublishReachesAllSubscribersOfTopic(t *testing.T) {
	ps := New()
	a := ps.Subscribe(TopicWiFiState, 1)
	b := ps.Subscribe(TopicWiFiState, 1)
	other := ps.Subscribe(TopicWiFiConnection, 1)

	ps.Publish(TopicWiFiState, "WAITING_FOR_HOTSPOT")

	assert.Len(t, a.Channel, 1)
	assert.Len(t, b.Channel, 1)
	assert.Len(t, other.Channel, 0, "other topics must not receive the message")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	ps := New()
	sub := ps.Subscribe(TopicWiFiState, 1)
	require.Equal(t, 1, ps.SubscriberCount(TopicWiFiState))

	ps.Unsubscribe(sub)
	assert.Equal(t, 0, ps.SubscriberCount(TopicWiFiState))

	_, open := <-sub.Channel
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	ps.Unsubscribe(sub)
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	ps := New()
	sub := ps.Subscribe(TopicWiFiState, 1)

	ps.Publish(TopicWiFiState, "first")
	ps.Publish(TopicWiFiState, "second") // dropped, buffer full

	assert.Equal(t, "first", <-sub.Channel)
	assert.Len(t, sub.Channel, 0)
}

func TestSubscriberIDsAreUnique(t *testing.T) {
	ps := New()
	a := ps.Subscribe(TopicWiFiState, 1)
	b := ps.Subscribe(TopicWiFiState, 1)
	assert.NotEqual(t, a.ID, b.ID)
}
