package server

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"parley/internal/models"
	"parley/internal/repository"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxProxyBytes = 32 * 1024 * 1024

var proxyClient = &http.Client{Timeout: 15 * time.Second}

// FileUploadResponse is the API response after uploading a file.
type FileUploadResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ContentType string  `json:"content_type"`
	Size        int64   `json:"size"`
	ThumbnailID *string `json:"thumbnail_id,omitempty"`
	URL         string  `json:"url"`
}

// UploadFile handles POST /api/files
func (s *Server) UploadFile(c *fiber.Ctx) error {
	userID := currentUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	uploaded, err := s.fileService.Upload(c.UserContext(), service.UploadFileInput{
		UserID:      userID,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(FileUploadResponse{
		ID:          uploaded.ID,
		Name:        uploaded.Name,
		ContentType: uploaded.ContentType,
		Size:        uploaded.Size,
		ThumbnailID: uploaded.ThumbnailID,
		URL:         "/api/files/" + uploaded.ID,
	})
}

// ServeFile handles GET /api/files/:id
func (s *Server) ServeFile(c *fiber.Ctx) error {
	id := c.Params("id")

	file, path, err := s.fileService.Open(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+file.Name+`"`)
	return c.SendFile(path)
}

// ServeThumbnail handles GET /api/files/:id/thumbnail
func (s *Server) ServeThumbnail(c *fiber.Ctx) error {
	id := c.Params("id")

	file, _, err := s.fileService.Open(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	if file.ThumbnailID == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("thumbnail"))
	}

	thumb, path, err := s.fileService.Open(c.UserContext(), *file.ThumbnailID)
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, thumb.ContentType)
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+thumb.Name+`"`)
	return c.SendFile(path)
}

// ProxyFile handles GET /api/files/proxy?url=. It re-emits the upstream body
// and status with an open CORS header so browser clients can render
// third-party media that lacks CORS headers of its own.
func (s *Server) ProxyFile(c *fiber.Ctx) error {
	rawURL := c.Query("url")
	if rawURL == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("url query parameter required"))
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("url must be absolute http(s)"))
	}

	req, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, parsed.String(), nil)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("invalid url"))
	}

	resp, err := proxyClient.Do(req)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadGateway,
			models.NewInternalError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBytes))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadGateway,
			models.NewInternalError(err))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	return c.Status(resp.StatusCode).Send(body)
}

// GetFileUploadLogs handles GET /api/files/logs
func (s *Server) GetFileUploadLogs(c *fiber.Ctx) error {
	p := parsePagination(c, 50)

	filter := repository.AuditFilter{
		Action: models.AuditFileUpload,
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

	return c.JSON(fiber.Map{"logs": logs})
}
