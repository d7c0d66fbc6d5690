package models

import (
	"time"

	"tams/internal/timestamp"
)

// Event is the envelope posted to webhook subscribers.
type Event struct {
	Timestamp time.Time `json:"event_timestamp"`
	Type      EventType `json:"event_type"`
	Body      any       `json:"event"`
}

// NewEvent stamps body with the current time.
func NewEvent(eventType EventType, body any) Event {
	return Event{Timestamp: time.Now().UTC(), Type: eventType, Body: body}
}

type FlowEvent struct {
	Flow Flow `json:"flow"`
}

type FlowDeletedEvent struct {
	FlowID string `json:"flow_id"`
}

type SegmentsAddedEvent struct {
	FlowID   string        `json:"flow_id"`
	Segments []FlowSegment `json:"segments"`
}

type SegmentsDeletedEvent struct {
	FlowID    string               `json:"flow_id"`
	TimeRange *timestamp.TimeRange `json:"timerange,omitempty"`
	Deleted   int                  `json:"deleted"`
}

type SourceEvent struct {
	Source Source `json:"source"`
}

type SourceDeletedEvent struct {
	SourceID string `json:"source_id"`
}
