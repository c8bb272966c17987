package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/chat-rooms-demo/modules/broadcast"
	"github.com/example/chat-rooms-demo/modules/coordinator"
	"github.com/example/chat-rooms-demo/modules/presence"
)

const ModuleName = "api"

// Module is the HTTP surface: the WebSocket endpoint that speaks the chat
// protocol, and a small read-only REST API over the room directory.
type Module struct {
	app         *fiber.App
	coordModule *coordinator.Module
	directory   coordinator.DirectoryPort
	hub         *broadcast.Hub
	presence    *presence.Module
	logger      types.Logger
	port        string
	corsOrigins string
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the API module. PORT (default "3000") and
// CORS_ALLOWED_ORIGINS (default "*") come from the environment.
func NewModule(coordModule *coordinator.Module, presenceModule *presence.Module, logger types.Logger) *Module {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		origins = "*"
	}
	return &Module{
		coordModule: coordModule,
		presence:    presenceModule,
		logger:      logger,
		port:        port,
		corsOrigins: origins,
	}
}

// SetHub sets the broadcast hub (called from main).
func (m *Module) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// Name implements mono.Module.
func (m *Module) Name() string {
	return ModuleName
}

// Dependencies implements mono.DependentModule.
func (m *Module) Dependencies() []string {
	return []string{coordinator.ModuleName}
}

// SetDependencyServiceContainer implements mono.DependentModule.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case coordinator.ModuleName:
		m.directory = coordinator.NewDirectoryAdapter(container)
	}
}

// Start implements mono.Module.
func (m *Module) Start(ctx context.Context) error {
	if m.directory == nil {
		return fmt.Errorf("coordinator service container not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub not set")
	}

	m.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: m.corsOrigins,
	}))
	m.app.Use(loggerMiddleware())

	m.setupRoutes()

	go func() {
		if err := m.app.Listen(":" + m.port); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("API module started", "port", m.port)
	return nil
}

// Stop implements mono.Module.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	return m.app.Shutdown()
}

// Health implements mono.HealthCheckableModule.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "serving",
		Details: map[string]any{
			"port":              m.port,
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// customErrorHandler maps Fiber errors to the JSON error shape.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware logs each request. WebSocket upgrades are skipped; the
// connection handler logs its own lifecycle.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		slog.Info("http request",
			"method", c.Method(), "path", c.Path(), "status", c.Response().StatusCode())
		return err
	}
}
