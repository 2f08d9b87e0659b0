// Package events provides the in-process pub/sub bus connecting the
// download pipeline to the importer and the CLI.
package events

import "time"

// Event is the base interface all events implement.
type Event interface {
	EventType() string
	EntityID() string // infohash for downloads, show ID for library events
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"entity_id"`
	Timestamp time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) EntityID() string      { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent creates a BaseEvent with the current timestamp.
func NewBaseEvent(eventType, entityID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		ID:        entityID,
		Timestamp: time.Now(),
	}
}
