package coordinator

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	chat "github.com/example/chat-rooms-demo/domain/chat"
)

// Validation constants
const (
	MaxDisplayNameLength = 50
	MaxRoomNameLength    = 100
	MaxBodyLength        = 4096
)

// Error taxonomy. Every coordinator failure wraps one of these sentinels so
// the transport layer can map it to the right connection-scoped signal.
var (
	// ErrValidation marks client-correctable input errors. No state changes.
	ErrValidation = errors.New("validation failed")

	// ErrNotInRoom marks a send into a room the connection is not a member
	// of. No state changes.
	ErrNotInRoom = errors.New("not a member of the room")

	// ErrPersistence marks a transient durable-store failure. Registry state
	// is rolled back; the operation is safely retriable.
	ErrPersistence = errors.New("persistence failure")
)

// Wire event names, matching the transport protocol.
const (
	EventJoinedRoom     = "joined_room"
	EventJoinError      = "join_error"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventReceiveMessage = "receive_message"
	EventSendError      = "send_error"
	EventMessageHistory = "message_history"
	EventUpdateRoomList = "update_room_list"
)

// JoinedRoomPayload confirms a join to the joining connection alone.
type JoinedRoomPayload struct {
	DisplayName string `json:"displayName"`
	Room        string `json:"room"`
}

// PresencePayload announces a user joining or leaving a room.
type PresencePayload struct {
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

// ErrorPayload carries a connection-scoped error signal.
type ErrorPayload struct {
	Message string `json:"message"`
}

// MessagePayload is a chat message as delivered over the wire.
type MessagePayload struct {
	DisplayName string    `json:"displayName"`
	Body        string    `json:"body"`
	Room        string    `json:"room"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryPayload delivers a room's bounded message history in chronological
// order to a joining connection.
type HistoryPayload struct {
	Messages []MessagePayload `json:"messages"`
}

// Gateway is the transport boundary the coordinator delivers through. The
// hub in the broadcast module implements it; the coordinator never touches
// connections directly.
//
// Delivery is synchronous: when a Gateway call returns, the notification has
// been handed to every targeted connection in order.
type Gateway interface {
	// SendToConnection delivers an event to a single connection.
	SendToConnection(connectionID, event string, payload any)

	// SendToRoom delivers an event to every member of room.
	SendToRoom(room, event string, payload any)

	// SendToRoomExcept delivers an event to every member of room except the
	// named connection.
	SendToRoomExcept(room, exceptID, event string, payload any)

	// BroadcastAll delivers an event to every connected client.
	BroadcastAll(event string, payload any)

	// Subscribe moves the connection's transport-level room subscription.
	Subscribe(connectionID, room string)

	// Unsubscribe clears the connection's transport-level room subscription.
	Unsubscribe(connectionID string)
}

// toMessagePayloads converts stored messages to their wire form.
func toMessagePayloads(messages []chat.Message) []MessagePayload {
	payloads := make([]MessagePayload, 0, len(messages))
	for _, msg := range messages {
		payloads = append(payloads, MessagePayload{
			DisplayName: msg.DisplayName,
			Body:        msg.Body,
			Room:        msg.Room,
			Timestamp:   msg.Timestamp,
		})
	}
	return payloads
}

// ValidateDisplayName validates a display name.
func ValidateDisplayName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if len(name) > MaxDisplayNameLength {
		return fmt.Errorf("%w: display name exceeds %d characters", ErrValidation, MaxDisplayNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: display name contains invalid characters", ErrValidation)
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(room string) error {
	if room == "" {
		return fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if len(room) > MaxRoomNameLength {
		return fmt.Errorf("%w: room name exceeds %d characters", ErrValidation, MaxRoomNameLength)
	}
	if !utf8.ValidString(room) {
		return fmt.Errorf("%w: room name contains invalid characters", ErrValidation)
	}
	return nil
}

// ValidateBody validates a message body.
func ValidateBody(body string) error {
	if body == "" {
		return fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if len(body) > MaxBodyLength {
		return fmt.Errorf("%w: message body exceeds %d characters", ErrValidation, MaxBodyLength)
	}
	if !utf8.ValidString(body) {
		return fmt.Errorf("%w: message body contains invalid characters", ErrValidation)
	}
	return nil
}
