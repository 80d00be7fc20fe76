package domain

import "time"

// Event notifies listeners that the collection changed.
type Event struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
