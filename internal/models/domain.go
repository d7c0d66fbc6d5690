package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidContentFormat = errors.New("invalid content format")
	ErrInvalidEventType     = errors.New("invalid event type")
	ErrInvalidStatus        = errors.New("invalid deletion status")
	ErrInvalidTransition    = errors.New("invalid deletion status transition")
)

// ContentFormat is the closed set of essence formats a source or flow carries.
type ContentFormat string

const (
	FormatVideo ContentFormat = "video"
	FormatImage ContentFormat = "image"
	FormatAudio ContentFormat = "audio"
	FormatData  ContentFormat = "data"
	FormatMulti ContentFormat = "multi"
)

// ContentFormats lists every format in declaration order.
var ContentFormats = []ContentFormat{FormatVideo, FormatImage, FormatAudio, FormatData, FormatMulti}

// URN returns the registered URN for f, or "" for an unknown value.
func (f ContentFormat) URN() string {
	switch f {
	case FormatVideo:
		return "urn:x-nmos:format:video"
	case FormatImage:
		return "urn:x-tam:format:image"
	case FormatAudio:
		return "urn:x-nmos:format:audio"
	case FormatData:
		return "urn:x-nmos:format:data"
	case FormatMulti:
		return "urn:x-nmos:format:multi"
	default:
		return ""
	}
}

// ParseContentFormat accepts either a format URN or its short name.
func ParseContentFormat(raw string) (ContentFormat, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, f := range ContentFormats {
		if value == string(f) || value == f.URN() {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidContentFormat, raw)
}

func (f ContentFormat) MarshalText() ([]byte, error) {
	urn := f.URN()
	if urn == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentFormat, string(f))
	}
	return []byte(urn), nil
}

func (f *ContentFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseContentFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// EventType names a lifecycle notification.
type EventType string

const (
	EventFlowCreated         EventType = "flow.created"
	EventFlowUpdated         EventType = "flow.updated"
	EventFlowDeleted         EventType = "flow.deleted"
	EventFlowSegmentsAdded   EventType = "flow.segments_added"
	EventFlowSegmentsDeleted EventType = "flow.segments_deleted"
	EventSourceCreated       EventType = "source.created"
	EventSourceUpdated       EventType = "source.updated"
	EventSourceDeleted       EventType = "source.deleted"

	// EventWildcard subscribes to every event type.
	EventWildcard = "*"
)

// EventTypes lists every event type in declaration order.
var EventTypes = []EventType{
	EventFlowCreated,
	EventFlowUpdated,
	EventFlowDeleted,
	EventFlowSegmentsAdded,
	EventFlowSegmentsDeleted,
	EventSourceCreated,
	EventSourceUpdated,
	EventSourceDeleted,
}

func (e EventType) Valid() bool {
	switch e {
	case EventFlowCreated, EventFlowUpdated, EventFlowDeleted,
		EventFlowSegmentsAdded, EventFlowSegmentsDeleted,
		EventSourceCreated, EventSourceUpdated, EventSourceDeleted:
		return true
	default:
		return false
	}
}

// NormalizeSubscription trims, lowercases and dedupes subscribed event
// names. Only known event types and the wildcard are accepted.
func NormalizeSubscription(events []string) ([]string, error) {
	out := make([]string, 0, len(events))
	seen := map[string]struct{}{}
	for _, raw := range events {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" {
			continue
		}
		if value != EventWildcard && !EventType(value).Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, raw)
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out, nil
}

// DeletionStatus is the lifecycle state of a deletion request.
type DeletionStatus string

const (
	DeletionPending DeletionStatus = "pending"
	DeletionRunning DeletionStatus = "running"
	DeletionDone    DeletionStatus = "done"
	DeletionError   DeletionStatus = "error"
)

func ParseDeletionStatus(raw string) (DeletionStatus, error) {
	value := DeletionStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch value {
	case DeletionPending, DeletionRunning, DeletionDone, DeletionError:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Terminal reports whether no further transition is possible.
func (s DeletionStatus) Terminal() bool {
	return s == DeletionDone || s == DeletionError
}

// CanTransition reports whether moving from s to next goes strictly forward.
func (s DeletionStatus) CanTransition(next DeletionStatus) bool {
	switch s {
	case DeletionPending:
		return next == DeletionRunning || next == DeletionError
	case DeletionRunning:
		return next == DeletionDone || next == DeletionError
	case DeletionDone, DeletionError:
		return false
	default:
		return false
	}
}
