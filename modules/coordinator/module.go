package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/chat-rooms-demo/events"
	"github.com/example/chat-rooms-demo/modules/store"
)

const ModuleName = "coordinator"

// Module hosts the coordinator inside the mono application: lifecycle,
// event emission, and the request/reply services other modules consume.
type Module struct {
	storeModule *store.Module
	gateway     Gateway
	coordinator *Coordinator
	eventBus    mono.EventBus
	logger      types.Logger
	cfg         Config
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the coordinator module. Configuration comes from the
// environment: DEFAULT_ROOM (default "Everyone"), HISTORY_LIMIT (default
// 50) and STORE_TIMEOUT_SECONDS (default 5).
func NewModule(storeModule *store.Module, logger types.Logger) *Module {
	cfg := Config{
		DefaultRoom:  "Everyone",
		HistoryLimit: 50,
		StoreTimeout: 5 * time.Second,
	}
	if room := os.Getenv("DEFAULT_ROOM"); room != "" {
		cfg.DefaultRoom = room
	}
	if raw := os.Getenv("HISTORY_LIMIT"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			cfg.HistoryLimit = limit
		}
	}
	if raw := os.Getenv("STORE_TIMEOUT_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			cfg.StoreTimeout = time.Duration(seconds) * time.Second
		}
	}
	return &Module{
		storeModule: storeModule,
		logger:      logger,
		cfg:         cfg,
	}
}

// SetGateway wires the transport gateway. Must be called before Start.
func (m *Module) SetGateway(gateway Gateway) {
	m.gateway = gateway
}

// Coordinator returns the running coordinator, or nil before Start.
func (m *Module) Coordinator() *Coordinator {
	return m.coordinator
}

// Name implements mono.Module.
func (m *Module) Name() string {
	return ModuleName
}

// Start implements mono.Module.
func (m *Module) Start(ctx context.Context) error {
	if m.gateway == nil {
		return errors.New("coordinator: gateway not wired")
	}
	st := m.storeModule.Store()
	if st == nil {
		return errors.New("coordinator: store module not started")
	}
	m.coordinator = New(st, m.gateway, slog.Default(), m.cfg)
	if m.eventBus != nil {
		m.coordinator.SetEventBus(m.eventBus)
	}
	m.logger.Info("Coordinator module started",
		"default_room", m.cfg.DefaultRoom,
		"history_limit", m.cfg.HistoryLimit)
	return nil
}

// Stop implements mono.Module.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Coordinator module stopped")
	return nil
}

// SetEventBus implements mono.EventBusAwareModule.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
	if m.coordinator != nil {
		m.coordinator.SetEventBus(bus)
	}
}

// EmitEvents implements mono.EventEmitterModule.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.MessageSentV1.ToBase(),
		events.RoomListUpdatedV1.ToBase(),
	}
}

// Health implements mono.HealthCheckableModule.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.coordinator == nil {
		return mono.HealthStatus{Healthy: false, Message: "coordinator not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "coordinator is running",
		Details: map[string]any{
			"connections":  m.coordinator.ConnectionCount(),
			"active_rooms": len(m.coordinator.ActiveRooms()),
		},
	}
}
