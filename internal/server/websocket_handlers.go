package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"parley/internal/middleware"
	"parley/internal/models"
	"parley/internal/notifications"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const wsTicketTTL = 30 * time.Second

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set an
// Authorization header on WebSocket upgrades, so authenticated clients trade
// their JWT for a short-lived single-use ticket passed in the query string.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("ticket store unavailable")))
	}

	userID := currentUserID(c)
	ticket := uuid.NewString()
	key := fmt.Sprintf("ws_ticket:%s", ticket)

	if err := s.redis.Set(c.Context(), key, strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// WebSocketRoomHandler handles WebSocket connections for real-time room
// events. Clients connect with ?room_id=N and receive every event published
// for that room; incoming "message" frames post on the sender's behalf.
func (s *Server) WebSocketRoomHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		roomID64, err := strconv.ParseUint(conn.Query("room_id"), 10, 32)
		if err != nil || roomID64 == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"room_id query parameter required"}`))
			_ = conn.Close()
			return
		}
		roomID := uint(roomID64)

		if _, err := s.roomService.GetRoom(ctx, roomID); err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"room not found"}`))
			_ = conn.Close()
			return
		}

		role, err := s.roomService.ResolveRole(ctx, roomID, userID)
		if err != nil || role == models.RoomRoleBlocked {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"forbidden"}`))
			_ = conn.Close()
			return
		}

		user, err := s.identityService.GetUser(ctx, userID)
		if err != nil {
			log.Printf("WebSocket: Failed to get user %d: %v", userID, err)
			_ = conn.Close()
			return
		}
		username := user.Username

		client, err := s.roomHub.Register(userID, roomID, conn)
		if err != nil {
			log.Printf("WebSocket: Failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		log.Printf("WebSocket: User %d (%s) connected to room %d", userID, username, roomID)

		client.IncomingHandler = func(cl *notifications.Client, message []byte) {
			var incoming map[string]any
			if err := json.Unmarshal(message, &incoming); err != nil {
				log.Printf("WebSocket: Invalid message format from user %d", userID)
				return
			}

			msgType, ok := incoming["type"].(string)
			if !ok {
				return
			}

			switch msgType {
			case "message":
				content, _ := incoming["content"].(string)
				if content == "" {
					return
				}

				// Same rate limit as the HTTP endpoint (15 per minute)
				id := fmt.Sprintf("user:%d", userID)
				allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_message", id, 15, time.Minute)
				if !allowed {
					s.trySendError(cl, "Rate limit exceeded. Please wait a moment.")
					return
				}

				in := service.SendMessageInput{
					RoomID:  roomID,
					UserID:  userID,
					Content: content,
				}
				if mdVal, ok := incoming["use_markdown"].(bool); ok {
					in.UseMarkdown = mdVal
				}
				if replyFloat, ok := incoming["reply_to_id"].(float64); ok && replyFloat > 0 {
					replyID := uint(replyFloat)
					in.ReplyToID = &replyID
				}

				if _, err := s.messageService.Send(ctx, in); err != nil {
					s.trySendError(cl, err.Error())
				}

			case "typing":
				id := fmt.Sprintf("user:%d", userID)
				allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "typing", id, 30, 10*time.Second)
				if !allowed {
					return
				}
				s.events.PublishRoomEvent(ctx, roomID, "typing", fiber.Map{
					"user_id":  userID,
					"username": username,
				})

			case "presence":
				s.events.PublishRoomEvent(ctx, roomID, "presence", fiber.Map{
					"user_id":  userID,
					"username": username,
					"online":   s.roomHub.RoomUserIDs(roomID),
				})
			}
		}

		// Send welcome message with the current room presence
		welcome := notifications.RoomEvent{
			Type:   "connected",
			RoomID: roomID,
			Payload: map[string]any{
				"user_id":  userID,
				"username": username,
				"role":     role,
				"online":   s.roomHub.RoomUserIDs(roomID),
			},
		}
		if welcomeJSON, err := json.Marshal(welcome); err == nil {
			client.TrySend(welcomeJSON)
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()
	})
}

func (s *Server) trySendError(cl *notifications.Client, message string) {
	event := notifications.RoomEvent{
		Type:    "error",
		Payload: map[string]string{"message": message},
	}
	if data, err := json.Marshal(event); err == nil {
		cl.TrySend(data)
	}
}
