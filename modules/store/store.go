package store

import (
	"context"
	"errors"
	"time"

	chat "github.com/example/chat-rooms-demo/domain/chat"
)

// ErrNotFound is returned when a connection record does not exist.
var ErrNotFound = errors.New("connection record not found")

// Store is the durable persistence boundary for the coordinator. It owns
// message history and the connection-to-room assignments; the in-memory
// registry is a cache over it, never a second source of truth.
//
// Implementations must be safe for concurrent use. All calls honor the
// deadline on ctx.
type Store interface {
	// FindConnectionRecord returns the record for connectionID, or
	// ErrNotFound.
	FindConnectionRecord(ctx context.Context, connectionID string) (*chat.ConnectionRecord, error)

	// UpsertConnectionRecord creates or overwrites the record for
	// connectionID and returns the resulting record.
	UpsertConnectionRecord(ctx context.Context, connectionID, displayName, room string) (*chat.ConnectionRecord, error)

	// DeleteConnectionRecord removes the record for connectionID and
	// returns the prior value, or ErrNotFound if none existed.
	DeleteConnectionRecord(ctx context.Context, connectionID string) (*chat.ConnectionRecord, error)

	// CountConnectionsInRoom returns the number of records assigned to room.
	CountConnectionsInRoom(ctx context.Context, room string) (int64, error)

	// DistinctActiveRooms returns the set of rooms with at least one record.
	DistinctActiveRooms(ctx context.Context) ([]string, error)

	// AppendMessage persists a message and returns its ID.
	AppendMessage(ctx context.Context, displayName, room, body string, timestamp time.Time) (string, error)

	// QueryRecentMessages returns at most limit messages for room, most
	// recent last (chronological order).
	QueryRecentMessages(ctx context.Context, room string, limit int) ([]chat.Message, error)
}
