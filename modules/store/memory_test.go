package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_ConnectionRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	saved, err := s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Everyone")
	if err != nil {
		t.Fatalf("UpsertConnectionRecord() error = %v", err)
	}
	if saved.Room != "Everyone" || saved.UpdatedAt.IsZero() {
		t.Errorf("UpsertConnectionRecord() saved = %+v, want room Everyone with timestamp", saved)
	}

	saved, err = s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Lobby")
	if err != nil {
		t.Fatalf("UpsertConnectionRecord() error = %v", err)
	}
	if saved.Room != "Lobby" {
		t.Errorf("UpsertConnectionRecord() saved = %+v, want room Lobby", saved)
	}

	record, err := s.FindConnectionRecord(ctx, "conn-1")
	if err != nil {
		t.Fatalf("FindConnectionRecord() error = %v", err)
	}
	if record.Room != "Lobby" {
		t.Errorf("record.Room = %q, want %q", record.Room, "Lobby")
	}

	removed, err := s.DeleteConnectionRecord(ctx, "conn-1")
	if err != nil {
		t.Fatalf("DeleteConnectionRecord() error = %v", err)
	}
	if removed.Room != "Lobby" {
		t.Errorf("removed.Room = %q, want %q", removed.Room, "Lobby")
	}

	if _, err := s.DeleteConnectionRecord(ctx, "conn-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteConnectionRecord() second delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_CountAndRooms(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, _ = s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Lobby")
	_, _ = s.UpsertConnectionRecord(ctx, "conn-2", "bob", "Lobby")
	_, _ = s.UpsertConnectionRecord(ctx, "conn-3", "carol", "")

	count, err := s.CountConnectionsInRoom(ctx, "Lobby")
	if err != nil {
		t.Fatalf("CountConnectionsInRoom() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountConnectionsInRoom(Lobby) = %d, want 2", count)
	}

	rooms, err := s.DistinctActiveRooms(ctx)
	if err != nil {
		t.Fatalf("DistinctActiveRooms() error = %v", err)
	}
	if len(rooms) != 1 || rooms[0] != "Lobby" {
		t.Errorf("DistinctActiveRooms() = %v, want [Lobby]", rooms)
	}
}

func TestMemoryStore_Messages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now().UTC()
	for i, body := range []string{"one", "two", "three", "four"} {
		if _, err := s.AppendMessage(ctx, "alice", "Lobby", body, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("AppendMessage(%q) error = %v", body, err)
		}
	}

	messages, err := s.QueryRecentMessages(ctx, "Lobby", 2)
	if err != nil {
		t.Fatalf("QueryRecentMessages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("QueryRecentMessages() count = %d, want 2", len(messages))
	}
	if messages[0].Body != "three" || messages[1].Body != "four" {
		t.Errorf("QueryRecentMessages() = [%s %s], want [three four]", messages[0].Body, messages[1].Body)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.UpsertConnectionRecord(ctx, "conn-1", "alice", "Lobby"); err == nil {
		t.Error("UpsertConnectionRecord() with canceled context, want error")
	}
	if _, err := s.QueryRecentMessages(ctx, "Lobby", 10); err == nil {
		t.Error("QueryRecentMessages() with canceled context, want error")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a'+n)) + "-conn"
			_, _ = s.UpsertConnectionRecord(ctx, id, "user", "Lobby")
			_, _ = s.AppendMessage(ctx, "user", "Lobby", "hi", time.Now())
			_, _ = s.QueryRecentMessages(ctx, "Lobby", 5)
		}(i)
	}
	wg.Wait()

	count, err := s.CountConnectionsInRoom(ctx, "Lobby")
	if err != nil {
		t.Fatalf("CountConnectionsInRoom() error = %v", err)
	}
	if count != 20 {
		t.Errorf("CountConnectionsInRoom(Lobby) = %d, want 20", count)
	}
}
