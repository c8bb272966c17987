package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-monolith/mono"

	chat "github.com/example/chat-rooms-demo/domain/chat"
	"github.com/example/chat-rooms-demo/events"
	"github.com/example/chat-rooms-demo/modules/store"
)

// Config carries the coordinator's tunables.
type Config struct {
	// DefaultRoom is the distinguished room that always exists.
	DefaultRoom string
	// HistoryLimit caps how many messages a joining connection receives.
	HistoryLimit int
	// StoreTimeout bounds every durable-store call made on behalf of an
	// operation, so a stalled store cannot wedge a connection forever.
	StoreTimeout time.Duration
}

// Coordinator is the room state machine. It owns the registry and the
// directory, writes through to the durable store, and pushes notifications
// out through the gateway in commit order.
//
// All mutating operations for a single connection are serialized on a
// per-connection lock, store round-trips included, so a slow join can never
// interleave with a disconnect for the same connection.
type Coordinator struct {
	registry  *Registry
	directory *Directory
	store     store.Store
	gateway   Gateway
	logger    *slog.Logger
	cfg       Config

	bus mono.EventBus

	// deliverMu serializes notification fan-out so room events are observed
	// in the order their operations committed.
	deliverMu sync.Mutex

	locksMu   sync.Mutex
	connLocks map[string]*connLock
}

type connLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a coordinator. The gateway must be wired before any operation
// runs; events are published only once an event bus is set.
func New(st store.Store, gateway Gateway, logger *slog.Logger, cfg Config) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = "Everyone"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	registry := NewRegistry()
	return &Coordinator{
		registry:  registry,
		directory: NewDirectory(registry, cfg.DefaultRoom),
		store:     st,
		gateway:   gateway,
		logger:    logger,
		cfg:       cfg,
		connLocks: make(map[string]*connLock),
	}
}

// SetEventBus wires the event bus used for observability events. The
// coordinator works without one; tests run it bus-less.
func (c *Coordinator) SetEventBus(bus mono.EventBus) {
	c.bus = bus
}

// lockConnection acquires the per-connection mutex for connectionID and
// returns its release func. Locks are refcounted so the table does not grow
// with every connection ever seen.
func (c *Coordinator) lockConnection(connectionID string) func() {
	c.locksMu.Lock()
	lock, ok := c.connLocks[connectionID]
	if !ok {
		lock = &connLock{}
		c.connLocks[connectionID] = lock
	}
	lock.refs++
	c.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.connLocks, connectionID)
		}
		c.locksMu.Unlock()
	}
}

func (c *Coordinator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.cfg.StoreTimeout)
}

// Join places the connection in room under displayName, leaving its current
// room implicitly if it has one. On success the joiner gets a confirmation
// and the room's recent history; the rooms involved hear about the move; and
// everyone hears about the room list when it changed shape.
func (c *Coordinator) Join(ctx context.Context, connectionID, displayName, room string) error {
	displayName = strings.TrimSpace(displayName)
	room = strings.TrimSpace(room)
	if err := ValidateDisplayName(displayName); err != nil {
		return err
	}
	if err := ValidateRoomName(room); err != nil {
		return err
	}

	unlock := c.lockConnection(connectionID)
	defer unlock()

	// Atomic transition: the old assignment is gone the instant the new one
	// lands, so no observer ever sees this connection in two rooms. The
	// member count fixed here decides whether the room just appeared;
	// concurrent first joiners would otherwise each re-count after the
	// other's upsert and both conclude they were second.
	prior, existed, members := c.registry.Upsert(connectionID, displayName, room)

	sctx, cancel := c.storeContext(ctx)
	_, err := c.store.UpsertConnectionRecord(sctx, connectionID, displayName, room)
	cancel()
	if err != nil {
		// Roll the registry back so memory and store agree. The failed join
		// is retriable without cleanup.
		if existed {
			c.registry.Restore(prior)
		} else {
			c.registry.Remove(connectionID)
		}
		c.logger.Error("join persistence failed",
			"connection_id", connectionID, "room", room, "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	oldRoom := ""
	if existed {
		oldRoom = prior.Room
	}
	listChanged := c.roomEmptied(oldRoom, room) || c.roomAppeared(oldRoom, room, members)

	c.gateway.Subscribe(connectionID, room)

	c.deliverMu.Lock()
	if oldRoom != "" && oldRoom != room {
		c.gateway.SendToRoomExcept(oldRoom, connectionID, EventUserLeft, PresencePayload{
			DisplayName: prior.DisplayName,
			Message:     prior.DisplayName + " has left the chat.",
		})
	}
	c.gateway.SendToRoomExcept(room, connectionID, EventUserJoined, PresencePayload{
		DisplayName: displayName,
		Message:     displayName + " has joined the chat.",
	})
	c.gateway.SendToConnection(connectionID, EventJoinedRoom, JoinedRoomPayload{
		DisplayName: displayName,
		Room:        room,
	})
	if listChanged {
		c.broadcastRoomList()
	}
	c.sendHistory(ctx, connectionID, room)
	c.deliverMu.Unlock()

	c.publishUserJoined(connectionID, displayName, room, oldRoom)
	if oldRoom != "" && oldRoom != room {
		c.publishUserLeft(connectionID, prior.DisplayName, oldRoom, false)
	}

	c.logger.Info("connection joined room",
		"connection_id", connectionID, "display_name", displayName,
		"room", room, "previous_room", oldRoom)
	return nil
}

// Leave removes the connection from its current room without disconnecting
// it. A connection in no room leaves this a no-op.
func (c *Coordinator) Leave(ctx context.Context, connectionID string) error {
	unlock := c.lockConnection(connectionID)
	defer unlock()

	entry, ok := c.registry.Lookup(connectionID)
	if !ok || entry.Room == "" {
		return nil
	}
	room := entry.Room

	c.registry.Upsert(connectionID, entry.DisplayName, "")

	sctx, cancel := c.storeContext(ctx)
	_, err := c.store.UpsertConnectionRecord(sctx, connectionID, entry.DisplayName, "")
	cancel()
	if err != nil {
		c.registry.Restore(entry)
		c.logger.Error("leave persistence failed",
			"connection_id", connectionID, "room", room, "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	listChanged := c.roomEmptied(room, "")

	c.gateway.Unsubscribe(connectionID)

	c.deliverMu.Lock()
	c.gateway.SendToRoomExcept(room, connectionID, EventUserLeft, PresencePayload{
		DisplayName: entry.DisplayName,
		Message:     entry.DisplayName + " has left the chat.",
	})
	if listChanged {
		c.broadcastRoomList()
	}
	c.deliverMu.Unlock()

	c.publishUserLeft(connectionID, entry.DisplayName, room, false)

	c.logger.Info("connection left room",
		"connection_id", connectionID, "display_name", entry.DisplayName, "room", room)
	return nil
}

// Disconnect retires a connection entirely. It is fired from transport
// teardown, so it never fails: store errors are logged and absorbed, and the
// in-memory cleanup always completes.
func (c *Coordinator) Disconnect(connectionID string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic during disconnect",
				"connection_id", connectionID, "panic", r)
		}
	}()

	unlock := c.lockConnection(connectionID)
	defer unlock()

	entry, existed := c.registry.Remove(connectionID)

	sctx, cancel := c.storeContext(context.Background())
	if _, err := c.store.DeleteConnectionRecord(sctx, connectionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Error("disconnect persistence failed",
			"connection_id", connectionID, "error", err)
	}
	cancel()

	c.gateway.Unsubscribe(connectionID)

	if !existed || entry.Room == "" {
		return
	}

	listChanged := c.roomEmptied(entry.Room, "")

	c.deliverMu.Lock()
	c.gateway.SendToRoom(entry.Room, EventUserLeft, PresencePayload{
		DisplayName: entry.DisplayName,
		Message:     entry.DisplayName + " has left the chat.",
	})
	if listChanged {
		c.broadcastRoomList()
	}
	c.deliverMu.Unlock()

	c.publishUserLeft(connectionID, entry.DisplayName, entry.Room, true)

	c.logger.Info("connection disconnected",
		"connection_id", connectionID, "display_name", entry.DisplayName, "room", entry.Room)
}

// SendMessage persists a message and delivers it to every member of room,
// the sender included. The connection must currently be a member of room.
func (c *Coordinator) SendMessage(ctx context.Context, connectionID, room, body string) error {
	room = strings.TrimSpace(room)
	if err := ValidateRoomName(room); err != nil {
		return err
	}
	if err := ValidateBody(body); err != nil {
		return err
	}

	unlock := c.lockConnection(connectionID)
	defer unlock()

	entry, ok := c.registry.Lookup(connectionID)
	if !ok || entry.Room != room {
		return fmt.Errorf("%w: %s", ErrNotInRoom, room)
	}

	timestamp := time.Now().UTC()
	sctx, cancel := c.storeContext(ctx)
	messageID, err := c.store.AppendMessage(sctx, entry.DisplayName, room, body, timestamp)
	cancel()
	if err != nil {
		c.logger.Error("message persistence failed",
			"connection_id", connectionID, "room", room, "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	c.deliverMu.Lock()
	c.gateway.SendToRoom(room, EventReceiveMessage, MessagePayload{
		DisplayName: entry.DisplayName,
		Body:        body,
		Room:        room,
		Timestamp:   timestamp,
	})
	c.deliverMu.Unlock()

	c.publishMessageSent(messageID, connectionID, entry.DisplayName, room, body, timestamp)
	return nil
}

// ActiveRooms returns the current room list snapshot.
func (c *Coordinator) ActiveRooms() []string {
	return c.directory.ActiveRooms()
}

// DefaultRoom returns the distinguished always-active room name.
func (c *Coordinator) DefaultRoom() string {
	return c.directory.DefaultRoom()
}

// History returns up to limit recent messages for room in chronological
// order. A non-positive limit falls back to the configured default.
func (c *Coordinator) History(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	room = strings.TrimSpace(room)
	if err := ValidateRoomName(room); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > c.cfg.HistoryLimit {
		limit = c.cfg.HistoryLimit
	}
	sctx, cancel := c.storeContext(ctx)
	defer cancel()
	messages, err := c.store.QueryRecentMessages(sctx, room, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return messages, nil
}

// MemberCount returns the number of live connections in room.
func (c *Coordinator) MemberCount(room string) int {
	return c.registry.CountInRoom(room)
}

// ConnectionCount returns the number of live connections.
func (c *Coordinator) ConnectionCount() int {
	return c.registry.Len()
}

// roomEmptied reports whether leaving oldRoom for newRoom dropped oldRoom
// off the directory. The default room never empties.
func (c *Coordinator) roomEmptied(oldRoom, newRoom string) bool {
	if oldRoom == "" || oldRoom == newRoom || oldRoom == c.cfg.DefaultRoom {
		return false
	}
	return c.registry.CountInRoom(oldRoom) == 0
}

// roomAppeared reports whether joining newRoom from oldRoom put newRoom on
// the directory for the first time. members is newRoom's count as observed
// by the registry upsert itself. The default room is always listed.
func (c *Coordinator) roomAppeared(oldRoom, newRoom string, members int) bool {
	if newRoom == c.cfg.DefaultRoom || oldRoom == newRoom {
		return false
	}
	return members == 1
}

// broadcastRoomList pushes the full room list to every connected client.
// Callers hold deliverMu.
func (c *Coordinator) broadcastRoomList() {
	rooms := c.directory.ActiveRooms()
	c.gateway.BroadcastAll(EventUpdateRoomList, rooms)
	c.publishRoomListUpdated(rooms)
}

// sendHistory delivers the room's recent history to one connection. A
// history read failure does not fail the join; the joiner just starts with
// an empty transcript. Callers hold deliverMu.
func (c *Coordinator) sendHistory(ctx context.Context, connectionID, room string) {
	sctx, cancel := c.storeContext(ctx)
	defer cancel()
	messages, err := c.store.QueryRecentMessages(sctx, room, c.cfg.HistoryLimit)
	if err != nil {
		c.logger.Error("history load failed",
			"connection_id", connectionID, "room", room, "error", err)
		messages = nil
	}
	c.gateway.SendToConnection(connectionID, EventMessageHistory, HistoryPayload{
		Messages: toMessagePayloads(messages),
	})
}

func (c *Coordinator) publishUserJoined(connectionID, displayName, room, previousRoom string) {
	if c.bus == nil {
		return
	}
	err := events.UserJoinedV1.Publish(c.bus, events.UserJoinedEvent{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Room:         room,
		PreviousRoom: previousRoom,
		Timestamp:    time.Now().UTC(),
	}, nil)
	if err != nil {
		c.logger.Warn("failed to publish user joined event", "error", err)
	}
}

func (c *Coordinator) publishUserLeft(connectionID, displayName, room string, disconnect bool) {
	if c.bus == nil {
		return
	}
	err := events.UserLeftV1.Publish(c.bus, events.UserLeftEvent{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Room:         room,
		Disconnect:   disconnect,
		Timestamp:    time.Now().UTC(),
	}, nil)
	if err != nil {
		c.logger.Warn("failed to publish user left event", "error", err)
	}
}

func (c *Coordinator) publishMessageSent(messageID, connectionID, displayName, room, body string, timestamp time.Time) {
	if c.bus == nil {
		return
	}
	err := events.MessageSentV1.Publish(c.bus, events.MessageSentEvent{
		MessageID:    messageID,
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Room:         room,
		Body:         body,
		Timestamp:    timestamp,
	}, nil)
	if err != nil {
		c.logger.Warn("failed to publish message sent event", "error", err)
	}
}

func (c *Coordinator) publishRoomListUpdated(rooms []string) {
	if c.bus == nil {
		return
	}
	err := events.RoomListUpdatedV1.Publish(c.bus, events.RoomListUpdatedEvent{
		Rooms:     rooms,
		Timestamp: time.Now().UTC(),
	}, nil)
	if err != nil {
		c.logger.Warn("failed to publish room list event", "error", err)
	}
}
