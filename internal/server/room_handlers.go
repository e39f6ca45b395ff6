package server

import (
	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateRoom handles POST /api/rooms
func (s *Server) CreateRoom(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.CreateRoom(c.UserContext(), service.CreateRoomInput{
		OwnerID:     currentUserID(c),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(room)
}

// GetRooms handles GET /api/rooms
func (s *Server) GetRooms(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	rooms, err := s.roomService.ListRooms(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"rooms": rooms})
}

// GetRoom handles GET /api/rooms/:id
func (s *Server) GetRoom(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	room, err := s.roomService.GetRoomSummary(c.UserContext(), roomID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(room)
}

// JoinRoom handles POST /api/rooms/:id/join
func (s *Server) JoinRoom(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	membership, err := s.roomService.JoinRoom(c.UserContext(), roomID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(membership)
}

// GetRoomMembers handles GET /api/rooms/:id/members
func (s *Server) GetRoomMembers(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.roomService.ListMembers(c.UserContext(), roomID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"members": members})
}

// GetMyRoomRole handles GET /api/rooms/:id/role
func (s *Server) GetMyRoomRole(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if _, err := s.roomService.GetRoom(c.UserContext(), roomID); err != nil {
		return respondServiceError(c, err)
	}

	role, err := s.roomService.ResolveRole(c.UserContext(), roomID, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"role": role})
}
