package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilClientIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	n.PublishRoomEvent(context.Background(), 1, "message_created", "payload")
	assert.NoError(t, n.StartRoomSubscriber(context.Background(), func(RoomEvent) {
		t.Error("subscriber should not fire without a Redis client")
	}))
}

func TestNotifier_PublishSubscribeRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	n := NewNotifier(rdb)
	events := make(chan RoomEvent, 1)
	require.NoError(t, n.StartRoomSubscriber(ctx, func(event RoomEvent) {
		events <- event
	}))

	// PSubscribe is asynchronous; give the subscription a moment to land.
	time.Sleep(50 * time.Millisecond)

	n.PublishRoomEvent(ctx, 42, "message_created", map[string]any{"content": "hi"})

	select {
	case event := <-events:
		assert.Equal(t, "message_created", event.Type)
		assert.Equal(t, uint(42), event.RoomID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room event")
	}
}

func TestRoomChannel(t *testing.T) {
	assert.Equal(t, "room:7:events", RoomChannel(7))
}
