package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	chat "github.com/example/chat-rooms-demo/domain/chat"
)

// MemoryStore implements Store with mutex-guarded in-process state. It keeps
// the same contract as GormStore so the two are interchangeable behind the
// STORE_BACKEND setting and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	connections map[string]chat.ConnectionRecord
	messages    []chat.Message
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connections: make(map[string]chat.ConnectionRecord),
	}
}

// FindConnectionRecord returns the record for connectionID, or ErrNotFound.
func (s *MemoryStore) FindConnectionRecord(ctx context.Context, connectionID string) (*chat.ConnectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.connections[connectionID]
	if !exists {
		return nil, ErrNotFound
	}
	copy := rec
	return &copy, nil
}

// UpsertConnectionRecord creates or overwrites the record for connectionID.
func (s *MemoryStore) UpsertConnectionRecord(ctx context.Context, connectionID, displayName, room string) (*chat.ConnectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := chat.ConnectionRecord{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Room:         room,
		UpdatedAt:    time.Now(),
	}
	s.connections[connectionID] = rec
	copy := rec
	return &copy, nil
}

// DeleteConnectionRecord removes the record for connectionID and returns the
// prior value.
func (s *MemoryStore) DeleteConnectionRecord(ctx context.Context, connectionID string) (*chat.ConnectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.connections[connectionID]
	if !exists {
		return nil, ErrNotFound
	}
	delete(s.connections, connectionID)
	copy := rec
	return &copy, nil
}

// CountConnectionsInRoom returns the number of records assigned to room.
func (s *MemoryStore) CountConnectionsInRoom(ctx context.Context, room string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, rec := range s.connections {
		if rec.Room == room {
			count++
		}
	}
	return count, nil
}

// DistinctActiveRooms returns the rooms with at least one record.
func (s *MemoryStore) DistinctActiveRooms(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	rooms := make([]string, 0)
	for _, rec := range s.connections {
		if rec.Room == "" || seen[rec.Room] {
			continue
		}
		seen[rec.Room] = true
		rooms = append(rooms, rec.Room)
	}
	return rooms, nil
}

// AppendMessage persists a message and returns its ID.
func (s *MemoryStore) AppendMessage(ctx context.Context, displayName, room, body string, timestamp time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := chat.Message{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		Body:        body,
		Room:        room,
		Timestamp:   timestamp,
	}
	s.messages = append(s.messages, msg)
	return msg.ID, nil
}

// QueryRecentMessages returns at most limit messages for room in
// chronological order.
func (s *MemoryStore) QueryRecentMessages(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []chat.Message{}, nil
	}

	matched := make([]chat.Message, 0)
	for _, msg := range s.messages {
		if msg.Room == room {
			matched = append(matched, msg)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	result := make([]chat.Message, len(matched))
	copy(result, matched)
	return result, nil
}
