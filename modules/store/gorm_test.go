package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStore creates a GormStore backed by an in-memory SQLite database.
func setupTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	s, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return s
}

func TestGormStore_UpsertConnectionRecord(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	if _, err := s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Everyone"); err != nil {
		t.Fatalf("UpsertConnectionRecord() error = %v", err)
	}

	record, err := s.FindConnectionRecord(ctx, "conn-1")
	if err != nil {
		t.Fatalf("FindConnectionRecord() error = %v", err)
	}
	if record.DisplayName != "alice" || record.Room != "Everyone" {
		t.Errorf("record = %+v, want alice in Everyone", record)
	}

	// Upserting the same connection replaces its room assignment.
	if _, err := s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Lobby"); err != nil {
		t.Fatalf("UpsertConnectionRecord() error = %v", err)
	}

	record, err = s.FindConnectionRecord(ctx, "conn-1")
	if err != nil {
		t.Fatalf("FindConnectionRecord() error = %v", err)
	}
	if record.Room != "Lobby" {
		t.Errorf("record.Room = %q, want %q", record.Room, "Lobby")
	}

	count, err := s.CountConnectionsInRoom(ctx, "Everyone")
	if err != nil {
		t.Fatalf("CountConnectionsInRoom() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountConnectionsInRoom(Everyone) = %d, want 0 after re-assignment", count)
	}
}

func TestGormStore_FindConnectionRecord_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := s.FindConnectionRecord(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FindConnectionRecord() error = %v, want ErrNotFound", err)
	}
}

func TestGormStore_DeleteConnectionRecord(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	if _, err := s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Lobby"); err != nil {
		t.Fatalf("UpsertConnectionRecord() error = %v", err)
	}

	t.Run("delete existing record", func(t *testing.T) {
		prior, err := s.DeleteConnectionRecord(ctx, "conn-1")
		if err != nil {
			t.Fatalf("DeleteConnectionRecord() error = %v", err)
		}
		if prior.Room != "Lobby" {
			t.Errorf("prior.Room = %q, want %q", prior.Room, "Lobby")
		}

		if _, err := s.FindConnectionRecord(ctx, "conn-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindConnectionRecord() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete non-existent record", func(t *testing.T) {
		_, err := s.DeleteConnectionRecord(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteConnectionRecord() error = %v, want ErrNotFound", err)
		}
	})
}

func TestGormStore_DistinctActiveRooms(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	if rooms, err := s.DistinctActiveRooms(ctx); err != nil || len(rooms) != 0 {
		t.Fatalf("DistinctActiveRooms() = %v, %v; want empty, nil", rooms, err)
	}

	_, _ = s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Lobby")
	_, _ = s.UpsertConnectionRecord(ctx, "conn-2", "bob", "Lobby")
	_, _ = s.UpsertConnectionRecord(ctx, "conn-3", "carol", "Attic")
	_, _ = s.UpsertConnectionRecord(ctx, "conn-4", "dave", "")

	rooms, err := s.DistinctActiveRooms(ctx)
	if err != nil {
		t.Fatalf("DistinctActiveRooms() error = %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("DistinctActiveRooms() = %v, want 2 rooms", rooms)
	}
	seen := make(map[string]bool)
	for _, room := range rooms {
		seen[room] = true
	}
	if !seen["Lobby"] || !seen["Attic"] {
		t.Errorf("DistinctActiveRooms() = %v, want Lobby and Attic", rooms)
	}
}

func TestGormStore_Messages(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	bodies := []string{"one", "two", "three", "four", "five"}
	for i, body := range bodies {
		id, err := s.AppendMessage(ctx, "alice", "Lobby", body, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("AppendMessage(%q) error = %v", body, err)
		}
		if id == "" {
			t.Fatal("AppendMessage() returned empty ID")
		}
	}
	if _, err := s.AppendMessage(ctx, "bob", "Attic", "elsewhere", base); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	t.Run("capped and chronological", func(t *testing.T) {
		messages, err := s.QueryRecentMessages(ctx, "Lobby", 3)
		if err != nil {
			t.Fatalf("QueryRecentMessages() error = %v", err)
		}
		if len(messages) != 3 {
			t.Fatalf("QueryRecentMessages() count = %d, want 3", len(messages))
		}
		for i, want := range []string{"three", "four", "five"} {
			if messages[i].Body != want {
				t.Errorf("messages[%d].Body = %q, want %q", i, messages[i].Body, want)
			}
		}
	})

	t.Run("room isolation", func(t *testing.T) {
		messages, err := s.QueryRecentMessages(ctx, "Attic", 10)
		if err != nil {
			t.Fatalf("QueryRecentMessages() error = %v", err)
		}
		if len(messages) != 1 || messages[0].Body != "elsewhere" {
			t.Errorf("QueryRecentMessages(Attic) = %+v, want single %q", messages, "elsewhere")
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		messages, err := s.QueryRecentMessages(ctx, "Basement", 10)
		if err != nil {
			t.Fatalf("QueryRecentMessages() error = %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("QueryRecentMessages(Basement) count = %d, want 0", len(messages))
		}
	})

	t.Run("non-positive limit", func(t *testing.T) {
		messages, err := s.QueryRecentMessages(ctx, "Lobby", 0)
		if err != nil {
			t.Fatalf("QueryRecentMessages() error = %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("QueryRecentMessages(limit=0) count = %d, want 0", len(messages))
		}
	})
}

func TestGormStore_MessageOrderSurvivesEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	ts := time.Now().UTC()
	for _, body := range []string{"first", "second", "third"} {
		if _, err := s.AppendMessage(ctx, "alice", "Lobby", body, ts); err != nil {
			t.Fatalf("AppendMessage(%q) error = %v", body, err)
		}
	}

	messages, err := s.QueryRecentMessages(ctx, "Lobby", 10)
	if err != nil {
		t.Fatalf("QueryRecentMessages() error = %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Body != want {
			t.Errorf("messages[%d].Body = %q, want %q", i, messages[i].Body, want)
		}
	}
}
