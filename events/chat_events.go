package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// UserJoinedEvent is emitted after a connection commits a join.
type UserJoinedEvent struct {
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	Room         string    `json:"room"`
	PreviousRoom string    `json:"previous_room,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted after a connection leaves a room, whether by an
// explicit leave, an implicit leave during a re-join, or a disconnect.
type UserLeftEvent struct {
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	Room         string    `json:"room"`
	Disconnect   bool      `json:"disconnect"`
	Timestamp    time.Time `json:"timestamp"`
}

// MessageSentEvent is emitted after a message is persisted and broadcast.
type MessageSentEvent struct {
	MessageID    string    `json:"message_id"`
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	Room         string    `json:"room"`
	Body         string    `json:"body"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoomListUpdatedEvent is emitted whenever the active-room list changes and
// a global directory broadcast goes out.
type RoomListUpdatedEvent struct {
	Rooms     []string  `json:"rooms"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the coordinator module.
var (
	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"coordinator",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"coordinator",
		"UserLeft",
		"v1",
	)

	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"coordinator",
		"MessageSent",
		"v1",
	)

	RoomListUpdatedV1 = helper.EventDefinition[RoomListUpdatedEvent](
		"coordinator",
		"RoomListUpdated",
		"v1",
	)
)
