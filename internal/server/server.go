// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"parley/internal/cache"
	"parley/internal/config"
	"parley/internal/database"
	"parley/internal/middleware"
	"parley/internal/models"
	"parley/internal/notifications"
	"parley/internal/policy"
	"parley/internal/repository"
	"parley/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo    repository.UserRepository
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	auditRepo   repository.AuditRepository
	fileRepo    repository.FileRepository

	notifier *notifications.Notifier
	roomHub  *notifications.RoomHub
	events   service.RoomNotifier

	identityService   *service.IdentityService
	roomService       *service.RoomService
	moderationService *service.ModerationService
	messageService    *service.MessageService
	fileService       *service.FileService
}

// roomEventFanout routes service events through Redis when available so every
// instance's hub sees them, and falls back to the local hub otherwise.
type roomEventFanout struct {
	notifier *notifications.Notifier
	hub      *notifications.RoomHub
	direct   bool
}

func (f *roomEventFanout) PublishRoomEvent(ctx context.Context, roomID uint, eventType string, payload any) {
	if f.direct {
		f.hub.BroadcastToRoom(roomID, notifications.RoomEvent{Type: eventType, RoomID: roomID, Payload: payload})
		return
	}
	f.notifier.PublishRoomEvent(ctx, roomID, eventType, payload)
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	fileRepo := repository.NewFileRepository(db)

	prom := middleware.InitMetrics("parley-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		roomRepo:       roomRepo,
		messageRepo:    messageRepo,
		auditRepo:      auditRepo,
		fileRepo:       fileRepo,
		notifier:       notifications.NewNotifier(redisClient),
		roomHub:        notifications.NewRoomHub(),
	}

	server.identityService = service.NewIdentityService(userRepo, policy.NewChecker(cfg.PlatformAdminEmails))
	isPlatformAdmin := server.identityService.IsPlatformAdmin
	server.roomService = service.NewRoomService(roomRepo, isPlatformAdmin, cfg.RoomCreateCooldown(), cfg.KickRejoinCooldown())
	server.moderationService = service.NewModerationService(roomRepo, userRepo, auditRepo, isPlatformAdmin)
	server.events = &roomEventFanout{notifier: server.notifier, hub: server.roomHub, direct: redisClient == nil}
	server.messageService = service.NewMessageService(
		messageRepo, roomRepo, userRepo, auditRepo, fileRepo,
		server.events, isPlatformAdmin,
	)
	server.fileService = service.NewFileService(fileRepo, cfg)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// Distributed tracing spans per request
	app.Use(middleware.TracingMiddleware())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Parley Backend Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/provision", middleware.RateLimit(
		s.redis, 10, time.Minute, "provision"), s.ProvisionIdentity)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/refresh", s.AuthRequired(), s.BanGate(), s.RefreshToken)

	// Ban status read sits outside the ban gate so banned clients can learn
	// why they are locked out.
	api.Get("/users/banned-status", s.AuthRequired(), s.GetBannedStatus)

	// Protected routes; every authenticated route sits behind the ban gate.
	protected := api.Group("", s.AuthRequired(), s.BanGate())

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me/connection-speed", s.UpdateConnectionSpeed)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.BanGate(), s.IssueWSTicket)

	// Room routes
	rooms := protected.Group("/rooms")
	rooms.Post("/", s.CreateRoom)
	rooms.Get("/", s.GetRooms)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	rooms.Post("/:id/join", s.JoinRoom)
	rooms.Get("/:id/members", s.GetRoomMembers)
	rooms.Get("/:id/role", s.GetMyRoomRole)
	rooms.Get("/:id/messages", s.GetRoomMessages)
	rooms.Post("/:id/messages", middleware.RateLimit(
		s.redis, 15, time.Minute, "send_message"), s.SendRoomMessage)
	rooms.Post("/:id/files", middleware.RateLimit(
		s.redis, 5, time.Minute, "send_file"), s.SendRoomFileMessage)
	rooms.Post("/:id/members/:userId/promote", s.PromoteToAdmin)
	rooms.Post("/:id/members/:userId/kick", s.KickUser)
	rooms.Post("/:id/members/:userId/block", s.BlockUser)
	rooms.Delete("/:id/members/:userId/block", s.UnblockUser)
	rooms.Get("/:id/mutes", s.GetRoomMutes)
	rooms.Post("/:id/mutes/:userId", s.MuteUser)
	rooms.Delete("/:id/mutes/:userId", s.UnmuteUser)
	// Generic /:id route must be last
	rooms.Get("/:id", s.GetRoom)

	// Message routes
	messages := protected.Group("/messages")
	messages.Delete("/:id", s.DeleteMessage)

	// File routes
	files := protected.Group("/files")
	files.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "upload_file"), s.UploadFile)
	// Literal routes must precede the generic /:id routes
	files.Get("/proxy", s.ProxyFile)
	files.Get("/logs", s.PlatformAdminRequired(), s.GetFileUploadLogs)
	files.Get("/:id/thumbnail", s.ServeThumbnail)
	files.Get("/:id", s.ServeFile)

	// Websocket endpoint - protected by AuthRequired (ticket or token)
	ws := api.Group("/ws", s.AuthRequired(), s.BanGate())
	ws.Get("/rooms", s.WebSocketRoomHandler())

	// Platform admin routes
	admin := protected.Group("/admin", s.PlatformAdminRequired())
	admin.Get("/users", s.GetAllUsers)
	admin.Post("/users/:id/ban", s.BanUser)
	admin.Post("/users/:id/unban", s.UnbanUser)
	admin.Get("/audit-logs", s.GetAuditLogs)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// PlatformAdminRequired returns middleware that rejects non-platform-admin
// users with 403. Must be placed after AuthRequired so that userID is
// available in locals.
func (s *Server) PlatformAdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.identityService.IsPlatformAdmin(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("platform admin required"))
		}

		return c.Next()
	}
}

// BanGate returns middleware that rejects globally banned accounts on every
// authenticated route. Must be placed after AuthRequired.
func (s *Server) BanGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		banned, err := s.identityService.IsBanned(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if banned {
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewBannedError())
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		isWSPath := strings.HasPrefix(path, "/api/ws")

		// 1. Try WebSocket ticket first (short-lived, single-use)
		ticket := c.Query("ticket")
		if ticket != "" && s.redis != nil {
			key := fmt.Sprintf("ws_ticket:%s", ticket)
			userIDStr, err := s.redis.GetDel(c.Context(), key).Result()
			if err == nil {
				userID, parseErr := strconv.ParseUint(userIDStr, 10, 32)
				if parseErr == nil {
					return s.setAuthenticatedUser(c, uint(userID))
				}
			}
			// If a ticket was provided but invalid/expired, fail WS paths hard
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT (Bearer token or query param)
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Reject token in query param for WS routes (must use ticket)
		if tokenString == "" && !isWSPath {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, jti, err := middleware.UserIDFromToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		// Check JTI for revocation
		if jti != "" && s.redis != nil {
			isBlacklisted, err := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
			if err == nil && isBlacklisted > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		return s.setAuthenticatedUser(c, userID)
	}
}

func (s *Server) setAuthenticatedUser(c *fiber.Ctx, userID uint) error {
	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
	return c.Next()
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName:   "Parley API",
		BodyLimit: 64 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the room hub to Redis pub/sub if available
	if s.redis != nil {
		go func() {
			if err := s.roomHub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.roomHub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close WebSocket connections gracefully
	if err := s.roomHub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.roomHub.Name(), err)
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
