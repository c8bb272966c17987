package chat

import "time"

// ConnectionRecord tracks which room a live connection currently occupies.
// One record exists per connection; it is replaced wholesale on re-join and
// removed on disconnect.
type ConnectionRecord struct {
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	Room         string    `json:"room,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a chat message persisted to the durable store. Messages are
// append-only; the coordinator never updates or deletes them.
type Message struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Body        string    `json:"body"`
	Room        string    `json:"room"`
	Timestamp   time.Time `json:"timestamp"`
}
