package server

import (
	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetRoomMessages handles GET /api/rooms/:id/messages
func (s *Server) GetRoomMessages(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 100)

	messages, err := s.messageService.List(c.UserContext(), roomID, currentUserID(c), p.Limit)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

// SendRoomMessage handles POST /api/rooms/:id/messages
func (s *Server) SendRoomMessage(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content     string `json:"content"`
		ReplyToID   *uint  `json:"reply_to_id"`
		UseMarkdown bool   `json:"use_markdown"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageService.Send(c.UserContext(), service.SendMessageInput{
		RoomID:      roomID,
		UserID:      currentUserID(c),
		Content:     req.Content,
		ReplyToID:   req.ReplyToID,
		UseMarkdown: req.UseMarkdown,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// SendRoomFileMessage handles POST /api/rooms/:id/files
func (s *Server) SendRoomFileMessage(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		FileID      string `json:"file_id"`
		Caption     string `json:"caption"`
		UseMarkdown bool   `json:"use_markdown"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.FileID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("file_id is required"))
	}

	msg, err := s.messageService.SendFile(c.UserContext(), service.SendFileMessageInput{
		RoomID:      roomID,
		UserID:      currentUserID(c),
		FileID:      req.FileID,
		Caption:     req.Caption,
		UseMarkdown: req.UseMarkdown,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// DeleteMessage handles DELETE /api/messages/:id?scope=me|everyone
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	scope := models.MessageDeleteScope(c.Query("scope", string(models.DeleteForMe)))

	if err := s.messageService.Delete(c.UserContext(), messageID, currentUserID(c), scope); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Message deleted", "scope": scope})
}
