package domain

// DefaultCollectionKey is the storage key shared with the mobile app.
const DefaultCollectionKey = "@memories_app_recuerdos"

const (
	DegradedHeader = "X-Memories-Degraded"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventCleared EventType = "cleared"
)

type Order int

const (
	OrderNewestFirst Order = iota
	OrderOldestFirst
)

func ParseOrder(s string) (Order, bool) {
	switch s {
	case "", "desc":
		return OrderNewestFirst, true
	case "asc":
		return OrderOldestFirst, true
	default:
		return OrderNewestFirst, false
	}
}
