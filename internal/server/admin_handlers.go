package server

import (
	"parley/internal/models"
	"parley/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/admin/users
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	users, err := s.identityService.ListUsers(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"users": users})
}

// BanUser handles POST /api/admin/users/:id/ban
func (s *Server) BanUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.moderationService.BanUser(c.UserContext(), currentUserID(c), targetID, parseReason(c)); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User banned"})
}

// UnbanUser handles POST /api/admin/users/:id/unban
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.moderationService.UnbanUser(c.UserContext(), currentUserID(c), targetID); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User unbanned"})
}

// GetAuditLogs handles GET /api/admin/audit-logs
func (s *Server) GetAuditLogs(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	filter := repository.AuditFilter{
		Action: models.AuditAction(c.Query("action")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if roomID := c.QueryInt("room_id", 0); roomID > 0 {
		id := uint(roomID)
		filter.RoomID = &id
	}

	logs, err := s.moderationService.ListAuditLogs(c.UserContext(), filter)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"audit_logs": logs})
}
