package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer bus.Close()

	messages, err := bus.Subscribe(context.Background(), TopicSecurity)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(bus)
	err = publisher.Publish(context.Background(), SecurityEvent{
		Type:     EventTokenReuse,
		UserID:   "0xabc",
		Family:   "family-1",
		DeviceID: "device-1",
	})
	require.NoError(t, err)

	select {
	case msg := <-messages:
		var event SecurityEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, EventTokenReuse, event.Type)
		assert.Equal(t, "0xabc", event.UserID)
		assert.Equal(t, "family-1", event.Family)
		assert.False(t, event.OccurredAt.IsZero())
		assert.Equal(t, EventTokenReuse, msg.Metadata.Get("event_type"))
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestNopPublisher(t *testing.T) {
	publisher := NopPublisher{}
	assert.NoError(t, publisher.Publish(context.Background(), SecurityEvent{Type: EventLogout}))
	assert.NoError(t, publisher.Close())
}
