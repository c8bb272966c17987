package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/example/chat-rooms-demo/modules/coordinator"
)

// Conn is the minimal write surface the hub needs from a WebSocket
// connection. *websocket.Conn satisfies it; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Envelope is the server-to-client wire frame: an event name plus its
// payload.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client is one connected WebSocket client tracked by the hub.
type Client struct {
	ID          string
	DisplayName string
	conn        Conn
	room        string

	// writeMu serializes writes; the underlying connection does not support
	// concurrent writers.
	writeMu sync.Mutex
}

// NewClient creates a hub client wrapping conn.
func NewClient(id, displayName string, conn Conn) *Client {
	return &Client{ID: id, DisplayName: displayName, conn: conn}
}

func (c *Client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub indexes connected clients by ID and by room, and delivers envelopes
// to them. Delivery is synchronous: every Send method has handed the frame
// to each targeted connection by the time it returns, so callers control
// ordering end to end.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client         // clientID -> client
	rooms   map[string]map[string]bool // room -> set of clientIDs
	logger  *slog.Logger
}

// Hub is the transport half of the coordinator's delivery contract.
var _ coordinator.Gateway = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
		logger:  logger,
	}
}

// Register adds a client to the hub. The client starts in no room.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes a client and its room subscription.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.dropFromRoom(client)
	delete(h.clients, clientID)
}

// Subscribe implements coordinator.Gateway. It moves the client's room
// subscription, dropping any previous one.
func (h *Hub) Subscribe(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.dropFromRoom(client)
	client.room = room
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][clientID] = true
}

// Unsubscribe implements coordinator.Gateway.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.dropFromRoom(client)
	client.room = ""
}

// dropFromRoom removes the client from the room index. Callers hold h.mu.
func (h *Hub) dropFromRoom(client *Client) {
	if client.room == "" {
		return
	}
	if members := h.rooms[client.room]; members != nil {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
}

// SendToConnection implements coordinator.Gateway.
func (h *Hub) SendToConnection(clientID, event string, payload any) {
	data, ok := h.marshal(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	client := h.clients[clientID]
	h.mu.RUnlock()
	if client != nil {
		h.write(client, event, data)
	}
}

// SendToRoom implements coordinator.Gateway.
func (h *Hub) SendToRoom(room, event string, payload any) {
	h.sendToRoom(room, "", event, payload)
}

// SendToRoomExcept implements coordinator.Gateway.
func (h *Hub) SendToRoomExcept(room, exceptID, event string, payload any) {
	h.sendToRoom(room, exceptID, event, payload)
}

func (h *Hub) sendToRoom(room, exceptID, event string, payload any) {
	data, ok := h.marshal(event, payload)
	if !ok {
		return
	}
	for _, client := range h.roomMembers(room, exceptID) {
		h.write(client, event, data)
	}
}

// BroadcastAll implements coordinator.Gateway.
func (h *Hub) BroadcastAll(event string, payload any) {
	data, ok := h.marshal(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()
	for _, client := range targets {
		h.write(client, event, data)
	}
}

func (h *Hub) roomMembers(room, exceptID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	memberIDs, ok := h.rooms[room]
	if !ok {
		return nil
	}
	members := make([]*Client, 0, len(memberIDs))
	for id := range memberIDs {
		if id == exceptID {
			continue
		}
		if client, ok := h.clients[id]; ok {
			members = append(members, client)
		}
	}
	return members
}

func (h *Hub) marshal(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("failed to marshal envelope", "event", event, "error", err)
		return nil, false
	}
	return data, true
}

// write hands a frame to one client. A write failure is logged and dropped;
// the read loop will notice the dead connection and tear it down.
func (h *Hub) write(client *Client, event string, data []byte) {
	if err := client.send(data); err != nil {
		h.logger.Warn("failed to send to client",
			"client_id", client.ID, "event", event, "error", err)
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of clients subscribed to room.
func (h *Hub) RoomClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// CloseAll closes every connection and clears the indexes. Used on
// shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		_ = client.conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}
