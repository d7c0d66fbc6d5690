// Package segindex maintains, per flow, a time-ordered set of segments whose
// ranges never overlap.
package segindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tams/internal/models"
	"tams/internal/timestamp"
)

var (
	ErrSegmentOverlap = errors.New("segment overlaps an existing segment")
	ErrFlowNotFound   = errors.New("flow not found")
	ErrReadOnlyFlow   = errors.New("flow is read-only")
	ErrInvalidCursor  = errors.New("invalid page cursor")
)

// Query selects a page of segments.
type Query struct {
	Range   *timestamp.TimeRange
	Limit   int
	Reverse bool
	Cursor  string
}

// Page is one query result. NextCursor is empty on the last page.
type Page struct {
	Segments   []models.FlowSegment
	NextCursor string
}

// DeleteResult describes a range deletion.
type DeleteResult struct {
	Deleted    int
	Remainders []models.FlowSegment
	// Released lists object ids no longer referenced by this flow's
	// remaining segments in the affected range.
	Released []string
}

// Index serializes mutations per flow; reads are lock-free. A second lock
// table keyed by object id orders new references to an object against its
// reaping. Object locks are always taken after flow locks.
type Index struct {
	store   Persistence
	locks   *keyedLocks
	objects *keyedLocks
	now     func() time.Time
}

// New creates an index over store.
func New(store Persistence) *Index {
	return &Index{store: store, locks: newKeyedLocks(), objects: newKeyedLocks(), now: time.Now}
}

// LockObject blocks until no segment insert referencing id is in flight and
// holds further ones off until the returned func is called. Callers must
// not acquire a flow lock while holding it.
func (ix *Index) LockObject(id string) func() {
	return ix.objects.lock(id)
}

// Exclusive runs fn while holding flowID's mutation lock.
func (ix *Index) Exclusive(flowID string, fn func() error) error {
	unlock := ix.locks.lock(flowID)
	defer unlock()
	return fn()
}

// Insert adds seg to flowID unless its range overlaps an existing segment.
// The overlap check and the write happen under the flow's lock.
func (ix *Index) Insert(ctx context.Context, flowID string, seg models.FlowSegment) (models.FlowSegment, error) {
	if err := seg.TimeRange.Validate(); err != nil {
		return models.FlowSegment{}, err
	}
	seg.FlowID = flowID
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = ix.now().UTC()
	}

	unlock := ix.locks.lock(flowID)
	defer unlock()
	unlockObject := ix.objects.lock(seg.ObjectID)
	defer unlockObject()

	if err := ix.checkWritable(ctx, flowID); err != nil {
		return models.FlowSegment{}, err
	}
	existing, err := ix.store.OverlappingSegments(ctx, flowID, seg.TimeRange)
	if err != nil {
		return models.FlowSegment{}, fmt.Errorf("check overlap: %w", err)
	}
	if len(existing) > 0 {
		return models.FlowSegment{}, fmt.Errorf("%w: %s intersects %s", ErrSegmentOverlap, seg.TimeRange, existing[0].TimeRange)
	}
	if err := ix.store.ApplySegmentChanges(ctx, flowID, Change{Insert: []models.FlowSegment{seg}}); err != nil {
		return models.FlowSegment{}, fmt.Errorf("insert segment: %w", err)
	}
	return seg, nil
}

// Query returns segments intersecting q.Range (all when nil) ordered by
// (start, object id), ascending unless q.Reverse.
func (ix *Index) Query(ctx context.Context, flowID string, q Query) (Page, error) {
	if q.Range != nil {
		if err := q.Range.Validate(); err != nil {
			return Page{}, err
		}
	}
	if _, err := ix.store.SegmentFlowState(ctx, flowID); err != nil {
		return Page{}, err
	}

	filter := Filter{Range: q.Range, Reverse: q.Reverse}
	if q.Cursor != "" {
		pos, err := DecodeCursor(q.Cursor)
		if err != nil {
			return Page{}, err
		}
		filter.After = &pos
	}
	if q.Limit > 0 {
		filter.Limit = q.Limit + 1
	}

	segments, err := ix.store.QuerySegments(ctx, flowID, filter)
	if err != nil {
		return Page{}, fmt.Errorf("query segments: %w", err)
	}

	page := Page{Segments: segments}
	if q.Limit > 0 && len(segments) > q.Limit {
		page.Segments = segments[:q.Limit]
		last := page.Segments[q.Limit-1]
		page.NextCursor = EncodeCursor(Position{Start: last.TimeRange.Start, ObjectID: last.ObjectID})
	}
	if page.Segments == nil {
		page.Segments = []models.FlowSegment{}
	}
	return page, nil
}

// DeleteRange removes every segment intersecting r. Parts of a segment that
// lie outside r are written back as new segments pointing at the same
// object. Counts, sample offsets and key frame counts described the original
// segment and are dropped from remainders.
func (ix *Index) DeleteRange(ctx context.Context, flowID string, r timestamp.TimeRange) (DeleteResult, error) {
	if err := r.Validate(); err != nil {
		return DeleteResult{}, err
	}

	unlock := ix.locks.lock(flowID)
	defer unlock()

	if err := ix.checkWritable(ctx, flowID); err != nil {
		return DeleteResult{}, err
	}
	hits, err := ix.store.OverlappingSegments(ctx, flowID, r)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("find segments: %w", err)
	}
	if len(hits) == 0 {
		return DeleteResult{}, nil
	}

	now := ix.now().UTC()
	var change Change
	for _, seg := range hits {
		change.Remove = append(change.Remove, seg.TimeRange.Start)
		for _, part := range seg.TimeRange.Subtract(r) {
			rem := seg
			rem.TimeRange = part
			rem.SampleOffset = nil
			rem.SampleCount = nil
			rem.KeyFrameCount = nil
			rem.GetURLs = nil
			rem.CreatedAt = now
			change.Insert = append(change.Insert, rem)
		}
	}
	if err := ix.store.ApplySegmentChanges(ctx, flowID, change); err != nil {
		return DeleteResult{}, fmt.Errorf("delete segments: %w", err)
	}

	return DeleteResult{
		Deleted:    len(hits),
		Remainders: change.Insert,
		Released:   releasedObjects(hits, change.Insert),
	}, nil
}

// RemoveAllForFlow deletes every segment of a writable flow and returns the
// object ids they referenced.
func (ix *Index) RemoveAllForFlow(ctx context.Context, flowID string) (int, []string, error) {
	unlock := ix.locks.lock(flowID)
	defer unlock()
	if err := ix.checkWritable(ctx, flowID); err != nil {
		return 0, nil, err
	}
	return ix.RemoveAllLocked(ctx, flowID)
}

// RemoveAllLocked is RemoveAllForFlow for callers already inside Exclusive.
func (ix *Index) RemoveAllLocked(ctx context.Context, flowID string) (int, []string, error) {
	removed, err := ix.store.DeleteAllSegments(ctx, flowID)
	if err != nil {
		return 0, nil, fmt.Errorf("delete all segments: %w", err)
	}
	return len(removed), releasedObjects(removed, nil), nil
}

func (ix *Index) checkWritable(ctx context.Context, flowID string) error {
	state, err := ix.store.SegmentFlowState(ctx, flowID)
	if err != nil {
		return err
	}
	if state.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnlyFlow, flowID)
	}
	return nil
}

func releasedObjects(removed, kept []models.FlowSegment) []string {
	keep := make(map[string]struct{}, len(kept))
	for _, seg := range kept {
		keep[seg.ObjectID] = struct{}{}
	}
	var out []string
	seen := map[string]struct{}{}
	for _, seg := range removed {
		if _, ok := keep[seg.ObjectID]; ok {
			continue
		}
		if _, ok := seen[seg.ObjectID]; ok {
			continue
		}
		seen[seg.ObjectID] = struct{}{}
		out = append(out, seg.ObjectID)
	}
	return out
}
