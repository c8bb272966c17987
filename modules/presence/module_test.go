package presence

import (
	"context"
	"reflect"
	"testing"

	"github.com/example/chat-rooms-demo/events"
)

func TestModule_Counters(t *testing.T) {
	ctx := context.Background()
	m := NewModule(nil)

	_ = m.handleUserJoined(ctx, events.UserJoinedEvent{ConnectionID: "c1", DisplayName: "alice", Room: "Lobby"}, nil)
	_ = m.handleUserJoined(ctx, events.UserJoinedEvent{ConnectionID: "c2", DisplayName: "bob", Room: "Lobby"}, nil)
	_ = m.handleMessageSent(ctx, events.MessageSentEvent{ConnectionID: "c1", Room: "Lobby", Body: "hi"}, nil)
	_ = m.handleUserLeft(ctx, events.UserLeftEvent{ConnectionID: "c1", Room: "Lobby"}, nil)
	_ = m.handleUserLeft(ctx, events.UserLeftEvent{ConnectionID: "c2", Room: "Lobby", Disconnect: true}, nil)
	_ = m.handleRoomListUpdated(ctx, events.RoomListUpdatedEvent{Rooms: []string{"Everyone", "Lobby"}}, nil)

	stats := m.Snapshot()
	if stats.Joins != 2 {
		t.Errorf("Snapshot().Joins = %d, want 2", stats.Joins)
	}
	if stats.Leaves != 2 {
		t.Errorf("Snapshot().Leaves = %d, want 2", stats.Leaves)
	}
	if stats.Disconnects != 1 {
		t.Errorf("Snapshot().Disconnects = %d, want 1", stats.Disconnects)
	}
	if stats.Messages != 1 {
		t.Errorf("Snapshot().Messages = %d, want 1", stats.Messages)
	}
	if stats.RoomListUpdates != 1 {
		t.Errorf("Snapshot().RoomListUpdates = %d, want 1", stats.RoomListUpdates)
	}
	if want := []string{"Everyone", "Lobby"}; !reflect.DeepEqual(stats.Rooms, want) {
		t.Errorf("Snapshot().Rooms = %v, want %v", stats.Rooms, want)
	}
	if stats.LastActivity == nil {
		t.Error("Snapshot().LastActivity = nil after activity, want timestamp")
	}
}

func TestModule_LastActivityUnsetWhenIdle(t *testing.T) {
	m := NewModule(nil)
	if got := m.Snapshot().LastActivity; got != nil {
		t.Errorf("Snapshot().LastActivity = %v before any event, want nil", got)
	}
}

func TestModule_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewModule(nil)

	_ = m.handleRoomListUpdated(ctx, events.RoomListUpdatedEvent{Rooms: []string{"Everyone"}}, nil)

	stats := m.Snapshot()
	stats.Rooms[0] = "mutated"

	if got := m.Snapshot().Rooms[0]; got != "Everyone" {
		t.Errorf("Snapshot() shares state with callers, Rooms[0] = %q", got)
	}
}
