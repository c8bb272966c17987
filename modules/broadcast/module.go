package broadcast

import (
	"context"
	"log/slog"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

const ModuleName = "broadcast"

// Module owns the WebSocket hub's lifecycle inside the mono application.
// The hub itself is created up front so it can be wired into the
// coordinator before the application starts.
type Module struct {
	hub    *Hub
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the broadcast module and its hub.
func NewModule(logger types.Logger) *Module {
	return &Module{
		hub:    NewHub(slog.Default()),
		logger: logger,
	}
}

// Hub returns the hub for wiring into the coordinator and the API layer.
func (m *Module) Hub() *Hub {
	return m.hub
}

// Name implements mono.Module.
func (m *Module) Name() string {
	return ModuleName
}

// Start implements mono.Module.
func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("Broadcast module started")
	return nil
}

// Stop implements mono.Module. It drops every live connection so clients
// reconnect instead of hanging on a dead socket.
func (m *Module) Stop(ctx context.Context) error {
	count := m.hub.ClientCount()
	m.hub.CloseAll()
	m.logger.Info("Broadcast module stopped", "clients_closed", count)
	return nil
}

// Health implements mono.HealthCheckableModule.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "hub is running",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}
