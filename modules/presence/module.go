// Package presence keeps live activity counters by consuming coordinator
// events off the bus. It sits outside the delivery path: dropping it
// changes nothing about chat behavior, only about what /api/v1/stats can
// report.
package presence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/chat-rooms-demo/events"
)

const ModuleName = "presence"

// Stats is a point-in-time snapshot of observed activity.
type Stats struct {
	Joins           int64      `json:"joins"`
	Leaves          int64      `json:"leaves"`
	Disconnects     int64      `json:"disconnects"`
	Messages        int64      `json:"messages"`
	RoomListUpdates int64      `json:"room_list_updates"`
	Rooms           []string   `json:"rooms"`
	LastActivity    *time.Time `json:"last_activity,omitempty"`
}

// Module counts coordinator events.
type Module struct {
	logger types.Logger

	joins           atomic.Int64
	leaves          atomic.Int64
	disconnects     atomic.Int64
	messages        atomic.Int64
	roomListUpdates atomic.Int64
	lastActivity    atomic.Int64

	mu    sync.RWMutex
	rooms []string
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the presence module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name implements mono.Module.
func (m *Module) Name() string {
	return ModuleName
}

// Start implements mono.Module.
func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("Presence module started")
	return nil
}

// Stop implements mono.Module.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Presence module stopped",
		"joins", m.joins.Load(),
		"leaves", m.leaves.Load(),
		"messages", m.messages.Load())
	return nil
}

// RegisterEventConsumers implements mono.EventConsumerModule.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomListUpdatedV1, m.handleRoomListUpdated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomListUpdated consumer: %w", err)
	}

	return nil
}

func (m *Module) touch() {
	m.lastActivity.Store(time.Now().UnixNano())
}

func (m *Module) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	m.joins.Add(1)
	m.touch()
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	m.leaves.Add(1)
	if event.Disconnect {
		m.disconnects.Add(1)
	}
	m.touch()
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.messages.Add(1)
	m.touch()
	return nil
}

func (m *Module) handleRoomListUpdated(_ context.Context, event events.RoomListUpdatedEvent, _ *mono.Msg) error {
	m.roomListUpdates.Add(1)
	m.touch()
	m.mu.Lock()
	m.rooms = append([]string(nil), event.Rooms...)
	m.mu.Unlock()
	return nil
}

// Snapshot returns the current counters.
func (m *Module) Snapshot() Stats {
	m.mu.RLock()
	rooms := append([]string(nil), m.rooms...)
	m.mu.RUnlock()
	s := Stats{
		Joins:           m.joins.Load(),
		Leaves:          m.leaves.Load(),
		Disconnects:     m.disconnects.Load(),
		Messages:        m.messages.Load(),
		RoomListUpdates: m.roomListUpdates.Load(),
		Rooms:           rooms,
	}
	if ns := m.lastActivity.Load(); ns != 0 {
		t := time.Unix(0, ns)
		s.LastActivity = &t
	}
	return s
}

// Health implements mono.HealthCheckableModule.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "consuming coordinator events",
		Details: map[string]any{
			"joins":    m.joins.Load(),
			"leaves":   m.leaves.Load(),
			"messages": m.messages.Load(),
		},
	}
}
