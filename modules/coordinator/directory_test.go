package coordinator

import (
	"reflect"
	"testing"
)

func TestDirectory_ActiveRooms(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    []string
	}{
		{
			name:    "empty registry still lists default room",
			entries: nil,
			want:    []string{"Everyone"},
		},
		{
			name: "occupied rooms sorted after default",
			entries: []Entry{
				{ConnectionID: "c1", DisplayName: "alice", Room: "Zoo"},
				{ConnectionID: "c2", DisplayName: "bob", Room: "Attic"},
			},
			want: []string{"Everyone", "Attic", "Zoo"},
		},
		{
			name: "default room membership does not duplicate it",
			entries: []Entry{
				{ConnectionID: "c1", DisplayName: "alice", Room: "Everyone"},
				{ConnectionID: "c2", DisplayName: "bob", Room: "Lobby"},
			},
			want: []string{"Everyone", "Lobby"},
		},
		{
			name: "roomless connections are invisible",
			entries: []Entry{
				{ConnectionID: "c1", DisplayName: "alice", Room: ""},
			},
			want: []string{"Everyone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			for _, e := range tt.entries {
				registry.Upsert(e.ConnectionID, e.DisplayName, e.Room)
			}
			directory := NewDirectory(registry, "Everyone")

			got := directory.ActiveRooms()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ActiveRooms() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirectory_DerivesFromRegistry(t *testing.T) {
	registry := NewRegistry()
	directory := NewDirectory(registry, "Everyone")

	registry.Upsert("c1", "alice", "Lobby")
	if got := directory.ActiveRooms(); !reflect.DeepEqual(got, []string{"Everyone", "Lobby"}) {
		t.Errorf("ActiveRooms() after join = %v, want [Everyone Lobby]", got)
	}

	registry.Remove("c1")
	if got := directory.ActiveRooms(); !reflect.DeepEqual(got, []string{"Everyone"}) {
		t.Errorf("ActiveRooms() after leave = %v, want [Everyone]", got)
	}
}
