// Package notifications provides real-time event delivery for rooms.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RoomEvent is the envelope published for every room-level event.
type RoomEvent struct {
	Type    string `json:"type"`
	RoomID  uint   `json:"room_id"`
	Payload any    `json:"payload,omitempty"`
}

// Notifier publishes room events into Redis channels so every server
// instance can fan them out to its own WebSocket clients.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishRoomEvent sends an event to a room's channel. With no Redis client
// configured it is a no-op; single-instance deployments then rely on the hub
// being fed directly.
func (n *Notifier) PublishRoomEvent(ctx context.Context, roomID uint, eventType string, payload any) {
	if n.rdb == nil {
		return
	}
	event := RoomEvent{Type: eventType, RoomID: roomID, Payload: payload}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Notifier: failed to marshal %s event for room %d: %v", eventType, roomID, err)
		return
	}
	if err := n.rdb.Publish(ctx, RoomChannel(roomID), data).Err(); err != nil {
		log.Printf("Notifier: failed to publish to room %d: %v", roomID, err)
	}
}

// StartRoomSubscriber subscribes to the room event pattern and calls onEvent
// for each incoming message.
func (n *Notifier) StartRoomSubscriber(ctx context.Context, onEvent func(event RoomEvent)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "room:*:events")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in RoomSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					var roomID uint
					if _, err := fmt.Sscanf(msg.Channel, "room:%d:events", &roomID); err != nil {
						log.Printf("Notifier: invalid channel format: %s", msg.Channel)
						return
					}
					var event RoomEvent
					if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
						log.Printf("Notifier: failed to parse event from channel %s: %v", msg.Channel, err)
						return
					}
					event.RoomID = roomID
					onEvent(event)
				}()
			}
		}
	}()

	return nil
}

// RoomChannel derives the Redis channel name for a room.
func RoomChannel(roomID uint) string {
	return "room:" + strconv.FormatUint(uint64(roomID), 10) + ":events"
}
