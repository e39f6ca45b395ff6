package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	RoomKeyPrefix        = "room:%d"
	RoomListKey          = "rooms:active"
	RoleKeyPrefix        = "room:%d:role:%d"
	MessageHistoryPrefix = "room:%d:messages"
)

const (
	UserTTL           = 5 * time.Minute
	RoomTTL           = 10 * time.Minute
	RoomListTTL       = 30 * time.Second
	RoleTTL           = time.Minute
	MessageHistoryTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func RoomKey(roomID uint) string {
	return fmt.Sprintf(RoomKeyPrefix, roomID)
}

func RoleKey(roomID, userID uint) string {
	return fmt.Sprintf(RoleKeyPrefix, roomID, userID)
}

func MessageHistoryKey(roomID uint) string {
	return fmt.Sprintf(MessageHistoryPrefix, roomID)
}

// Aside fetches key from Redis into dest, falling back to load on a miss and
// caching whatever load left in dest. A nil client degrades to a plain load.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	if client != nil {
		raw, err := client.Get(ctx, key).Bytes()
		if err == nil {
			if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
				return nil
			}
		}
	}

	if err := load(); err != nil {
		return err
	}

	if client != nil {
		if raw, jsonErr := json.Marshal(dest); jsonErr == nil {
			client.Set(ctx, key, raw, ttl)
		}
	}
	return nil
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateRoom(ctx context.Context, roomID uint) {
	Invalidate(ctx, RoomKey(roomID))
	Invalidate(ctx, MessageHistoryKey(roomID))
	Invalidate(ctx, RoomListKey)
}

func InvalidateRole(ctx context.Context, roomID, userID uint) {
	Invalidate(ctx, RoleKey(roomID, userID))
}
