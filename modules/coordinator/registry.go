package coordinator

import "sync"

// Entry is a registry row: one live connection and its room assignment.
// Room is empty for a connection that is connected but not in any room.
type Entry struct {
	ConnectionID string
	DisplayName  string
	Room         string
}

// Registry is the in-memory source of truth for live connections. Every
// mutation is a single atomic step under one lock, so no reader ever
// observes a connection in two rooms, or in none, mid-transition.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Upsert inserts or overwrites the entry for connectionID and returns the
// prior entry, if any, plus room's member count after the write. Overwriting
// is how a room switch happens: the old assignment is gone the instant the
// new one lands. The count is taken under the same lock as the write, so
// exactly one of several concurrent first joiners of a room observes a
// count of 1; re-counting later cannot make that distinction.
func (r *Registry) Upsert(connectionID, displayName, room string) (prior Entry, existed bool, members int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior, existed = r.entries[connectionID]
	r.entries[connectionID] = Entry{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Room:         room,
	}
	if room != "" {
		for _, e := range r.entries {
			if e.Room == room {
				members++
			}
		}
	}
	return prior, existed, members
}

// Restore reinserts an entry verbatim. Used to roll back an Upsert when the
// durable write behind it fails.
func (r *Registry) Restore(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ConnectionID] = entry
}

// Lookup returns the entry for connectionID.
func (r *Registry) Lookup(connectionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[connectionID]
	return entry, ok
}

// Remove deletes the entry for connectionID and returns what was removed.
func (r *Registry) Remove(connectionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[connectionID]
	if ok {
		delete(r.entries, connectionID)
	}
	return entry, ok
}

// CountInRoom returns the number of connections currently assigned to room.
func (r *Registry) CountInRoom(room string) int {
	if room == "" {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, entry := range r.entries {
		if entry.Room == room {
			count++
		}
	}
	return count
}

// Rooms returns the distinct rooms that have at least one member.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	rooms := make([]string, 0)
	for _, entry := range r.entries {
		if entry.Room == "" || seen[entry.Room] {
			continue
		}
		seen[entry.Room] = true
		rooms = append(rooms, entry.Room)
	}
	return rooms
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
