package server

import (
	"parley/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.identityService.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateConnectionSpeed handles PUT /api/users/me/connection-speed
func (s *Server) UpdateConnectionSpeed(c *fiber.Ctx) error {
	var req struct {
		SpeedMbps       float64 `json:"speed_mbps"`
		ShowSpeedDialog bool    `json:"show_speed_dialog"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.SpeedMbps < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("speed must not be negative"))
	}

	user, err := s.identityService.UpdateConnectionSpeed(
		c.UserContext(), currentUserID(c), req.SpeedMbps, req.ShowSpeedDialog)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}
