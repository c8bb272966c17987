package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/chat-rooms-demo/modules/broadcast"
	"github.com/example/chat-rooms-demo/modules/coordinator"
)

const maxHistoryLimit = 1000

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	// Health check
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket))

	// REST API v1
	api := m.app.Group("/api/v1")
	api.Get("/rooms", m.listRooms)
	api.Get("/rooms/:room/history", m.getHistory)
	api.Get("/stats", m.getStats)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            ModuleName,
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *Module) listRooms(c *fiber.Ctx) error {
	rooms, err := m.directory.ListRooms(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}

	response := RoomListResponse{
		Rooms: make([]RoomResponse, 0, len(rooms)),
	}
	for _, room := range rooms {
		response.Rooms = append(response.Rooms, RoomResponse{
			Name:    room.Name,
			Members: room.Members,
		})
	}

	return c.JSON(response)
}

// getHistory handles GET /api/v1/rooms/:room/history.
func (m *Module) getHistory(c *fiber.Ctx) error {
	room := c.Params("room")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	messages, err := m.directory.RoomHistory(c.UserContext(), room, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load history",
		})
	}

	response := HistoryResponse{
		Room:     room,
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		response.Messages = append(response.Messages, MessageResponse{
			ID:          msg.ID,
			DisplayName: msg.DisplayName,
			Body:        msg.Body,
			Room:        msg.Room,
			Timestamp:   msg.Timestamp,
		})
	}

	return c.JSON(response)
}

// getStats handles GET /api/v1/stats.
func (m *Module) getStats(c *fiber.Ctx) error {
	return c.JSON(m.presence.Snapshot())
}

// handleWebSocket owns one client connection: register with the hub, push
// the current room list, then pump the read loop until the peer goes away.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	connectionID := uuid.New().String()
	client := broadcast.NewClient(connectionID, "", c)
	coord := m.coordModule.Coordinator()

	m.hub.Register(client)
	defer func() {
		m.hub.Unregister(connectionID)
		coord.Disconnect(connectionID)
		slog.Info("websocket client disconnected", "connection_id", connectionID)
	}()

	slog.Info("websocket client connected", "connection_id", connectionID)

	// New clients get the directory right away so their room picker is
	// populated before they join anything.
	m.hub.SendToConnection(connectionID, coordinator.EventUpdateRoomList, coord.ActiveRooms())

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("websocket client closed connection", "connection_id", connectionID)
			} else {
				slog.Warn("websocket read error", "connection_id", connectionID, "error", err)
			}
			return
		}

		var envelope clientEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			m.sendError(connectionID, coordinator.EventSendError, "Invalid message format")
			continue
		}

		switch envelope.Event {
		case eventJoinRoom:
			m.handleJoin(connectionID, client, envelope.Data)
		case eventSendMessage:
			m.handleSend(connectionID, envelope.Data)
		case eventLeaveRoom:
			m.handleLeave(connectionID)
		default:
			m.sendError(connectionID, coordinator.EventSendError, "Unknown event: "+envelope.Event)
		}
	}
}

func (m *Module) handleJoin(connectionID string, client *broadcast.Client, data json.RawMessage) {
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.sendError(connectionID, coordinator.EventJoinError, "Invalid join_room payload")
		return
	}

	coord := m.coordModule.Coordinator()
	if err := coord.Join(context.Background(), connectionID, req.DisplayName, req.Room); err != nil {
		m.sendError(connectionID, coordinator.EventJoinError, userMessage(err))
		return
	}
	client.DisplayName = req.DisplayName
}

func (m *Module) handleSend(connectionID string, data json.RawMessage) {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		m.sendError(connectionID, coordinator.EventSendError, "Invalid send_message payload")
		return
	}

	coord := m.coordModule.Coordinator()
	if err := coord.SendMessage(context.Background(), connectionID, req.Room, req.Body); err != nil {
		m.sendError(connectionID, coordinator.EventSendError, userMessage(err))
	}
}

func (m *Module) handleLeave(connectionID string) {
	coord := m.coordModule.Coordinator()
	if err := coord.Leave(context.Background(), connectionID); err != nil {
		m.sendError(connectionID, coordinator.EventSendError, userMessage(err))
	}
}

func (m *Module) sendError(connectionID, event, message string) {
	m.hub.SendToConnection(connectionID, event, coordinator.ErrorPayload{Message: message})
}

// userMessage maps a coordinator error to a client-facing message.
func userMessage(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrValidation):
		return err.Error()
	case errors.Is(err, coordinator.ErrNotInRoom):
		return "You are not a member of this room."
	case errors.Is(err, coordinator.ErrPersistence):
		return "Something went wrong. Please try again."
	default:
		return "Internal error."
	}
}
