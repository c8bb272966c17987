package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chat "github.com/example/chat-rooms-demo/domain/chat"
)

// connectionRow is the GORM model for connection-to-room assignments.
// Mirrors one row per live connection; replaced on re-join, removed on
// disconnect.
type connectionRow struct {
	ConnectionID string    `gorm:"primarykey;size:36"`
	DisplayName  string    `gorm:"size:100;not null"`
	Room         string    `gorm:"size:100;index"`
	UpdatedAt    time.Time
}

// TableName returns the table name for connectionRow.
func (connectionRow) TableName() string {
	return "connections"
}

// messageRow is the GORM model for persisted messages. Seq gives a stable
// total order even when two messages share a timestamp.
type messageRow struct {
	Seq         uint      `gorm:"primarykey;autoIncrement"`
	ID          string    `gorm:"size:36;uniqueIndex;not null"`
	DisplayName string    `gorm:"size:100;not null"`
	Body        string    `gorm:"size:4096;not null"`
	Room        string    `gorm:"size:100;index;not null"`
	Timestamp   time.Time `gorm:"index;not null"`
}

// TableName returns the table name for messageRow.
func (messageRow) TableName() string {
	return "messages"
}

// GormStore implements Store on a GORM-managed SQL database.
type GormStore struct {
	db *gorm.DB
}

// Compile-time interface check.
var _ Store = (*GormStore)(nil)

// NewGormStore creates a GormStore and runs migrations.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&connectionRow{}, &messageRow{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &GormStore{db: db}, nil
}

// FindConnectionRecord returns the record for connectionID, or ErrNotFound.
func (s *GormStore) FindConnectionRecord(ctx context.Context, connectionID string) (*chat.ConnectionRecord, error) {
	var row connectionRow
	err := s.db.WithContext(ctx).First(&row, "connection_id = ?", connectionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find connection record: %w", err)
	}
	return rowToRecord(&row), nil
}

// UpsertConnectionRecord creates or overwrites the record for connectionID.
func (s *GormStore) UpsertConnectionRecord(ctx context.Context, connectionID, displayName, room string) (*chat.ConnectionRecord, error) {
	row := connectionRow{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Room:         room,
		UpdatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert connection record: %w", err)
	}
	return rowToRecord(&row), nil
}

// DeleteConnectionRecord removes the record for connectionID and returns the
// prior value.
func (s *GormStore) DeleteConnectionRecord(ctx context.Context, connectionID string) (*chat.ConnectionRecord, error) {
	var row connectionRow
	err := s.db.WithContext(ctx).First(&row, "connection_id = ?", connectionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find connection record: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&connectionRow{}, "connection_id = ?", connectionID).Error; err != nil {
		return nil, fmt.Errorf("failed to delete connection record: %w", err)
	}
	return rowToRecord(&row), nil
}

// CountConnectionsInRoom returns the number of records assigned to room.
func (s *GormStore) CountConnectionsInRoom(ctx context.Context, room string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&connectionRow{}).Where("room = ?", room).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count connections: %w", err)
	}
	return count, nil
}

// DistinctActiveRooms returns the rooms with at least one record.
func (s *GormStore) DistinctActiveRooms(ctx context.Context) ([]string, error) {
	var rooms []string
	err := s.db.WithContext(ctx).
		Model(&connectionRow{}).
		Where("room <> ''").
		Distinct().
		Pluck("room", &rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}
	return rooms, nil
}

// AppendMessage persists a message and returns its ID.
func (s *GormStore) AppendMessage(ctx context.Context, displayName, room, body string, timestamp time.Time) (string, error) {
	row := messageRow{
		ID:          uuid.New().String(),
		DisplayName: displayName,
		Body:        body,
		Room:        room,
		Timestamp:   timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}
	return row.ID, nil
}

// QueryRecentMessages returns at most limit messages for room in
// chronological order.
func (s *GormStore) QueryRecentMessages(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("room = ?", room).
		Order("seq DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	// Rows come back newest-first; reverse into chronological order.
	messages := make([]chat.Message, len(rows))
	for i, row := range rows {
		messages[len(rows)-1-i] = chat.Message{
			ID:          row.ID,
			DisplayName: row.DisplayName,
			Body:        row.Body,
			Room:        row.Room,
			Timestamp:   row.Timestamp,
		}
	}
	return messages, nil
}

func rowToRecord(row *connectionRow) *chat.ConnectionRecord {
	return &chat.ConnectionRecord{
		ConnectionID: row.ConnectionID,
		DisplayName:  row.DisplayName,
		Room:         row.Room,
		UpdatedAt:    row.UpdatedAt,
	}
}
