package coordinator

import "sort"

// Directory answers "which rooms exist right now". It owns no state of its
// own: the answer is derived from the registry on every call, so it can
// never drift from actual membership. A room exists while it has at least
// one member; the default room exists unconditionally.
type Directory struct {
	registry    *Registry
	defaultRoom string
}

// NewDirectory creates a directory deriving from registry. defaultRoom is
// always listed, even when empty.
func NewDirectory(registry *Registry, defaultRoom string) *Directory {
	return &Directory{registry: registry, defaultRoom: defaultRoom}
}

// ActiveRooms returns the current room list: the default room first,
// followed by every occupied room in lexical order. Sorting keeps the list
// stable across calls so consumers can compare snapshots directly.
func (d *Directory) ActiveRooms() []string {
	occupied := d.registry.Rooms()
	others := make([]string, 0, len(occupied))
	for _, room := range occupied {
		if room != d.defaultRoom {
			others = append(others, room)
		}
	}
	sort.Strings(others)
	return append([]string{d.defaultRoom}, others...)
}

// DefaultRoom returns the distinguished always-active room name.
func (d *Directory) DefaultRoom() string {
	return d.defaultRoom
}
