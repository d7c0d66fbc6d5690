package models

import (
	"time"

	"tams/internal/timestamp"
)

// FlowSegment is one time slice of a flow, backed by a stored object.
type FlowSegment struct {
	FlowID        string               `json:"flow_id"`
	ObjectID      string               `json:"object_id"`
	TimeRange     timestamp.TimeRange  `json:"timerange"`
	TSOffset      *timestamp.Timestamp `json:"ts_offset,omitempty"`
	SampleOffset  *int64               `json:"sample_offset,omitempty"`
	SampleCount   *int64               `json:"sample_count,omitempty"`
	KeyFrameCount *int64               `json:"key_frame_count,omitempty"`
	GetURLs       []GetURL             `json:"get_urls,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// GetURL is a placeholder download location for an object.
type GetURL struct {
	URL       string    `json:"url"`
	Label     string    `json:"label,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StorageObject describes an allocated upload target.
type StorageObject struct {
	ObjectID   string            `json:"object_id"`
	PutURL     string            `json:"put_url"`
	PutHeaders map[string]string `json:"put_headers,omitempty"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// MediaObject is the catalog record of one stored payload.
type MediaObject struct {
	ObjectID       string    `json:"object_id"`
	SizeBytes      int64     `json:"size_bytes"`
	MIMEType       string    `json:"mime_type,omitempty"`
	FlowReferences []string  `json:"flow_references"`
	GetURLs        []GetURL  `json:"get_urls,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
