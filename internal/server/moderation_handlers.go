package server

import (
	"time"

	"parley/internal/models"

	"github.com/gofiber/fiber/v2"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

func parseReason(c *fiber.Ctx) string {
	var req reasonRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}
	return req.Reason
}

// PromoteToAdmin handles POST /api/rooms/:id/members/:userId/promote
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	membership, err := s.moderationService.PromoteToAdmin(c.UserContext(), roomID, currentUserID(c), targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.events.PublishRoomEvent(c.UserContext(), roomID, "member_promoted",
		fiber.Map{"user_id": targetID, "role": membership.Role})
	return c.JSON(membership)
}

// KickUser handles POST /api/rooms/:id/members/:userId/kick
func (s *Server) KickUser(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.KickUser(c.UserContext(), roomID, currentUserID(c), targetID, parseReason(c)); err != nil {
		return respondServiceError(c, err)
	}

	s.roomHub.DisconnectUser(roomID, targetID)
	s.events.PublishRoomEvent(c.UserContext(), roomID, "member_kicked", fiber.Map{"user_id": targetID})
	return c.JSON(fiber.Map{"message": "User kicked"})
}

// BlockUser handles POST /api/rooms/:id/members/:userId/block
func (s *Server) BlockUser(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.BlockUser(c.UserContext(), roomID, currentUserID(c), targetID, parseReason(c)); err != nil {
		return respondServiceError(c, err)
	}

	s.roomHub.DisconnectUser(roomID, targetID)
	s.events.PublishRoomEvent(c.UserContext(), roomID, "member_blocked", fiber.Map{"user_id": targetID})
	return c.JSON(fiber.Map{"message": "User blocked"})
}

// UnblockUser handles DELETE /api/rooms/:id/members/:userId/block
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.UnblockUser(c.UserContext(), roomID, currentUserID(c), targetID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User unblocked"})
}

// GetRoomMutes handles GET /api/rooms/:id/mutes
func (s *Server) GetRoomMutes(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	mutes, err := s.moderationService.ListMutes(c.UserContext(), roomID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"mutes": mutes})
}

// MuteUser handles POST /api/rooms/:id/mutes/:userId
func (s *Server) MuteUser(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Reason    string     `json:"reason"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	mute, err := s.moderationService.MuteUser(c.UserContext(), roomID, currentUserID(c), targetID, req.Reason, req.ExpiresAt)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.events.PublishRoomEvent(c.UserContext(), roomID, "member_muted", fiber.Map{"user_id": targetID})
	return c.Status(fiber.StatusCreated).JSON(mute)
}

// UnmuteUser handles DELETE /api/rooms/:id/mutes/:userId
func (s *Server) UnmuteUser(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.moderationService.UnmuteUser(c.UserContext(), roomID, currentUserID(c), targetID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User unmuted"})
}
