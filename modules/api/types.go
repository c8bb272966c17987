package api

import (
	"encoding/json"
	"time"
)

// clientEnvelope is the client-to-server wire frame: an event name plus an
// event-specific payload.
type clientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client-to-server event names.
const (
	eventJoinRoom    = "join_room"
	eventSendMessage = "send_message"
	eventLeaveRoom   = "leave_room"
)

// joinRoomRequest is the join_room payload.
type joinRoomRequest struct {
	DisplayName string `json:"displayName"`
	Room        string `json:"room"`
}

// sendMessageRequest is the send_message payload.
type sendMessageRequest struct {
	Room string `json:"room"`
	Body string `json:"body"`
}

// RoomResponse is the API response for one room.
type RoomResponse struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// MessageResponse is the API response for a message.
type MessageResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Body        string    `json:"body"`
	Room        string    `json:"room"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	Room     string            `json:"room"`
	Messages []MessageResponse `json:"messages"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
