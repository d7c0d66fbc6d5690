package models

import (
	"time"

	"tams/internal/timestamp"
)

// Source is the abstract origin of one or more flows.
type Source struct {
	ID          string            `json:"id"`
	Format      ContentFormat     `json:"format"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Flow is one time-addressable rendition of a source.
type Flow struct {
	ID                 string               `json:"id"`
	SourceID           string               `json:"source_id,omitempty"`
	Format             ContentFormat        `json:"format"`
	Label              string               `json:"label,omitempty"`
	Description        string               `json:"description,omitempty"`
	Tags               map[string]string    `json:"tags"`
	ReadOnly           bool                 `json:"read_only"`
	MaxBitRate         *int64               `json:"max_bit_rate,omitempty"`
	AvgBitRate         *int64               `json:"avg_bit_rate,omitempty"`
	Container          string               `json:"container,omitempty"`
	Codec              string               `json:"codec,omitempty"`
	FrameWidth         *int                 `json:"frame_width,omitempty"`
	FrameHeight        *int                 `json:"frame_height,omitempty"`
	SampleRate         *int                 `json:"sample_rate,omitempty"`
	Channels           *int                 `json:"channels,omitempty"`
	FlowCollection     *FlowCollection      `json:"flow_collection,omitempty"`
	AvailableTimeRange *timestamp.TimeRange `json:"available_timerange,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// FlowCollection groups member flows, in order.
type FlowCollection struct {
	Flows []FlowCollectionItem `json:"flows"`
}

type FlowCollectionItem struct {
	FlowID       string        `json:"flow_id"`
	Role         string        `json:"role,omitempty"`
	ContainerMap *ContainerMap `json:"container_map,omitempty"`
}

type ContainerMap struct {
	TrackID   string `json:"track_id,omitempty"`
	ProgramID string `json:"program_id,omitempty"`
	StreamID  string `json:"stream_id,omitempty"`
}

// DeletionRequest tracks an asynchronous removal of a flow's segments.
type DeletionRequest struct {
	ID        string               `json:"id"`
	FlowID    string               `json:"flow_id"`
	TimeRange *timestamp.TimeRange `json:"timerange,omitempty"`
	Status    DeletionStatus       `json:"status"`
	Progress  *int                 `json:"progress,omitempty"`
	Error     string               `json:"error,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Webhook is a registered event subscriber. APIKeyValue is accepted on
// registration and never echoed back.
type Webhook struct {
	URL         string   `json:"url"`
	APIKeyName  string   `json:"api_key_name,omitempty"`
	APIKeyValue string   `json:"api_key_value,omitempty"`
	Events      []string `json:"events"`
}

// Redacted returns a copy without the API key value.
func (w Webhook) Redacted() Webhook {
	w.APIKeyValue = ""
	return w
}
