package api

import (
	"tams/internal/models"
	"tams/internal/timestamp"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// Pagination describes one page of a list response. NextKey is set when
// more results follow and is passed back as the page query parameter.
type Pagination struct {
	Limit        int                  `json:"limit"`
	Count        int                  `json:"count"`
	NextKey      string               `json:"next_key,omitempty"`
	TimeRange    *timestamp.TimeRange `json:"timerange,omitempty"`
	ReverseOrder bool                 `json:"reverse_order,omitempty"`
}

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ServiceCapabilities lists the optional features this service offers.
type ServiceCapabilities struct {
	SupportsWebhooks        bool  `json:"supports_webhooks"`
	SupportsFlowDeletion    bool  `json:"supports_flow_deletion"`
	SupportsSegmentDeletion bool  `json:"supports_segment_deletion"`
	SupportsReadOnlyFlows   bool  `json:"supports_read_only_flows"`
	MaxFileSize             int64 `json:"max_file_size"`
}

// ServiceInfo is returned by GET /service.
type ServiceInfo struct {
	Name                  string              `json:"name"`
	Description           string              `json:"description"`
	Version               string              `json:"version"`
	MediaStoreType        string              `json:"media_store_type"`
	EventStreamMechanisms []string            `json:"event_stream_mechanisms"`
	EventTypes            []string            `json:"event_types"`
	Capabilities          ServiceCapabilities `json:"capabilities"`
}

// SourceCreateRequest defines the payload for creating a source.
type SourceCreateRequest struct {
	ID          string            `json:"id,omitempty"`
	Format      string            `json:"format"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// SourceUpdateRequest replaces the supplied source attributes.
type SourceUpdateRequest struct {
	Label       *string           `json:"label,omitempty"`
	Description *string           `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type SourceListResponse struct {
	Sources    []models.Source `json:"sources"`
	Pagination Pagination      `json:"pagination"`
}

// FlowCreateRequest defines the payload for creating a flow.
type FlowCreateRequest struct {
	ID             string                 `json:"id,omitempty"`
	SourceID       string                 `json:"source_id,omitempty"`
	Format         string                 `json:"format"`
	Label          string                 `json:"label,omitempty"`
	Description    string                 `json:"description,omitempty"`
	Tags           map[string]string      `json:"tags,omitempty"`
	ReadOnly       bool                   `json:"read_only,omitempty"`
	MaxBitRate     *int64                 `json:"max_bit_rate,omitempty"`
	AvgBitRate     *int64                 `json:"avg_bit_rate,omitempty"`
	Container      string                 `json:"container,omitempty"`
	Codec          string                 `json:"codec,omitempty"`
	FrameWidth     *int                   `json:"frame_width,omitempty"`
	FrameHeight    *int                   `json:"frame_height,omitempty"`
	SampleRate     *int                   `json:"sample_rate,omitempty"`
	Channels       *int                   `json:"channels,omitempty"`
	FlowCollection *models.FlowCollection `json:"flow_collection,omitempty"`
}

// FlowUpdateRequest replaces the supplied flow attributes. Format and the
// available time range are not updatable.
type FlowUpdateRequest struct {
	SourceID       *string                `json:"source_id,omitempty"`
	Label          *string                `json:"label,omitempty"`
	Description    *string                `json:"description,omitempty"`
	Tags           map[string]string      `json:"tags,omitempty"`
	ReadOnly       *bool                  `json:"read_only,omitempty"`
	MaxBitRate     *int64                 `json:"max_bit_rate,omitempty"`
	AvgBitRate     *int64                 `json:"avg_bit_rate,omitempty"`
	Container      *string                `json:"container,omitempty"`
	Codec          *string                `json:"codec,omitempty"`
	FrameWidth     *int                   `json:"frame_width,omitempty"`
	FrameHeight    *int                   `json:"frame_height,omitempty"`
	SampleRate     *int                   `json:"sample_rate,omitempty"`
	Channels       *int                   `json:"channels,omitempty"`
	FlowCollection *models.FlowCollection `json:"flow_collection,omitempty"`
}

type FlowListResponse struct {
	Flows      []models.Flow `json:"flows"`
	Pagination Pagination    `json:"pagination"`
}

// SegmentCreateRequest registers one segment of a flow.
type SegmentCreateRequest struct {
	ObjectID      string               `json:"object_id"`
	TimeRange     *timestamp.TimeRange `json:"timerange"`
	TSOffset      *timestamp.Timestamp `json:"ts_offset,omitempty"`
	SampleOffset  *int64               `json:"sample_offset,omitempty"`
	SampleCount   *int64               `json:"sample_count,omitempty"`
	KeyFrameCount *int64               `json:"key_frame_count,omitempty"`
}

type SegmentListResponse struct {
	Segments   []models.FlowSegment `json:"segments"`
	Pagination Pagination           `json:"pagination"`
}

// SegmentDeleteResponse reports a synchronous segment deletion.
type SegmentDeleteResponse struct {
	Deleted    int `json:"deleted"`
	Remainders int `json:"remainders"`
}

// StorageRequest asks for upload targets. ObjectIDs takes precedence over
// Limit.
type StorageRequest struct {
	Limit     int      `json:"limit,omitempty"`
	ObjectIDs []string `json:"object_ids,omitempty"`
}

type StorageResponse struct {
	MediaObjects []models.StorageObject `json:"media_objects"`
}

// ObjectUploadResponse is returned after a payload upload.
type ObjectUploadResponse struct {
	ObjectID  string `json:"object_id"`
	SizeBytes int64  `json:"size_bytes"`
	MIMEType  string `json:"mime_type,omitempty"`
}

type WebhookListResponse struct {
	Webhooks []models.Webhook `json:"webhooks"`
}

// DeletionCreateRequest queues removal of a flow's segments. A missing
// TimeRange removes every segment.
type DeletionCreateRequest struct {
	FlowID    string               `json:"flow_id"`
	TimeRange *timestamp.TimeRange `json:"timerange,omitempty"`
}

type DeletionListResponse struct {
	DeletionRequests []models.DeletionRequest `json:"deletion_requests"`
	Pagination       Pagination               `json:"pagination"`
}

// CleanupStagingResponse reports one staging cleanup pass.
type CleanupStagingResponse struct {
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// GCObjectsResponse reports one orphan collection pass.
type GCObjectsResponse struct {
	Scanned int  `json:"scanned"`
	Removed int  `json:"removed"`
	Failed  int  `json:"failed"`
	DryRun  bool `json:"dry_run"`
}

type ObjectStoreStats struct {
	TotalBytes  int64 `json:"total_bytes"`
	ObjectCount int64 `json:"object_count"`
}

type CatalogStats struct {
	Sources        int `json:"sources"`
	Flows          int `json:"flows"`
	Segments       int `json:"segments"`
	MediaObjects   int `json:"media_objects"`
	Webhooks       int `json:"webhooks"`
	PendingDeletes int `json:"pending_deletes"`
}

// StatsResponse is returned by GET /admin/stats.
type StatsResponse struct {
	Objects ObjectStoreStats `json:"objects"`
	Catalog CatalogStats     `json:"catalog"`
}
