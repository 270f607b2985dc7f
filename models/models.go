package models

import "time"

// EventType says whether an incident was seen for the first time or
// changed since the last poll.
type EventType string

const (
	EventTypeNew     EventType = "new"
	EventTypeUpdated EventType = "updated"
)

// Entry is a single item extracted from a provider's status feed.
type Entry struct {
	ID        string
	Title     string
	Summary   string
	UpdatedAt time.Time
}

// StatusEvent is emitted on the event bus for every new or updated
// incident. Value type, safe to copy between goroutines.
type StatusEvent struct {
	Provider   string    `json:"provider"`
	Product    string    `json:"product"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	IncidentID string    `json:"incidentId"`
	EventType  EventType `json:"eventType"`
}

// EventsAggregatedByTime holds event counts bucketed by hour, day or week
// for the dashboard charts.
type EventsAggregatedByTime struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}
