package segindex

import (
	"context"

	"tams/internal/models"
	"tams/internal/timestamp"
)

// FlowState is the part of a flow the index needs before mutating it.
type FlowState struct {
	ReadOnly bool
}

// Position is a point in (start, object id) order.
type Position struct {
	Start    timestamp.Timestamp
	ObjectID string
}

// Filter selects segments of one flow.
type Filter struct {
	Range   *timestamp.TimeRange
	After   *Position
	Reverse bool
	Limit   int
}

// Change is applied atomically: segments starting at Remove are deleted,
// Insert is written, and the flow's available range is recomputed.
type Change struct {
	Remove []timestamp.Timestamp
	Insert []models.FlowSegment
}

// Persistence stores segments. Implementations must apply a Change as one
// atomic unit so readers never see a removed segment without its remainders.
type Persistence interface {
	SegmentFlowState(ctx context.Context, flowID string) (FlowState, error)
	OverlappingSegments(ctx context.Context, flowID string, r timestamp.TimeRange) ([]models.FlowSegment, error)
	QuerySegments(ctx context.Context, flowID string, filter Filter) ([]models.FlowSegment, error)
	ApplySegmentChanges(ctx context.Context, flowID string, change Change) error
	DeleteAllSegments(ctx context.Context, flowID string) ([]models.FlowSegment, error)
}
