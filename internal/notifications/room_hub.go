package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"parley/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// RoomHub manages WebSocket connections per room. A user may hold several
// connections to the same room from different devices.
type RoomHub struct {
	mu sync.RWMutex

	// Map: roomID -> set of active Clients
	rooms map[uint]map[*Client]bool

	// Map: userID -> set of active Clients (Multi-Device Support)
	userConns map[uint]map[*Client]bool

	metrics *observability.RoomConnectionMetrics
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return "room hub" }

// NewRoomHub creates a new RoomHub instance
func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms:     make(map[uint]map[*Client]bool),
		userConns: make(map[uint]map[*Client]bool),
		metrics:   observability.NewRoomConnectionMetrics(),
	}
}

// Register attaches a user's websocket connection to a room. Returns the
// Client or an error if the per-user connection limit is exceeded.
func (h *RoomHub) Register(userID, roomID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]bool)
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		return nil, fmt.Errorf("user connection limit reached")
	}

	client := NewClient(h, conn, userID, roomID)
	h.userConns[userID][client] = true

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	h.metrics.IncrementRoom(strconv.FormatUint(uint64(roomID), 10))

	log.Printf("RoomHub: Registered user %d in room %d (Active clients: %d)", userID, roomID, len(h.userConns[userID]))
	return client, nil
}

// UnregisterClient detaches a websocket connection from its room.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userConns[client.UserID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.userConns, client.UserID)
	}

	if members, ok := h.rooms[client.RoomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}
	h.metrics.DecrementRoom(strconv.FormatUint(uint64(client.RoomID), 10))

	log.Printf("RoomHub: Unregistered user %d from room %d", client.UserID, client.RoomID)
}

// BroadcastToRoom sends an event to every client attached to the room.
func (h *RoomHub) BroadcastToRoom(roomID uint, event RoomEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("RoomHub: Failed to marshal %s event: %v", event.Type, err)
		return
	}

	for client := range members {
		client.TrySend(data)
	}

	observability.RecordWebSocketEvent(event.Type)
	log.Printf("RoomHub: Broadcast %s to room %d (%d clients)", event.Type, roomID, len(members))
}

// DisconnectUser force-closes every connection the user holds to the room.
// Used when a member is kicked or blocked.
func (h *RoomHub) DisconnectUser(roomID, userID uint) {
	h.mu.Lock()
	victims := make([]*Client, 0, 2)
	if members, ok := h.rooms[roomID]; ok {
		for client := range members {
			if client.UserID == userID {
				victims = append(victims, client)
			}
		}
	}
	h.mu.Unlock()

	for _, client := range victims {
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
		h.UnregisterClient(client)
	}
}

// RoomUserIDs returns the distinct userIDs currently connected to the room.
func (h *RoomHub) RoomUserIDs(roomID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return []uint{}
	}

	seen := make(map[uint]struct{}, len(members))
	result := make([]uint, 0, len(members))
	for client := range members {
		if _, dup := seen[client.UserID]; dup {
			continue
		}
		seen[client.UserID] = struct{}{}
		result = append(result, client.UserID)
	}
	return result
}

// IsUserOnline returns true when the user has at least one active client.
func (h *RoomHub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userConns[userID]
	return ok && len(clients) > 0
}

// StartWiring connects the RoomHub to Redis pub/sub for room events.
func (h *RoomHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartRoomSubscriber(ctx, func(event RoomEvent) {
		h.BroadcastToRoom(event.RoomID, event)
	})
}

// Shutdown gracefully closes all websocket connections
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.userConns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"server_shutdown","payload":{"message":"Server is shutting down"}}`)); err != nil {
				log.Printf("failed to write shutdown message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}

	h.rooms = make(map[uint]map[*Client]bool)
	h.userConns = make(map[uint]map[*Client]bool)

	return nil
}
