package segindex

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tams/internal/models"
	"tams/internal/timestamp"
)

// MemoryPersistence keeps segments in process memory.
type MemoryPersistence struct {
	mu    sync.RWMutex
	flows map[string]*memoryFlow
}

type memoryFlow struct {
	readOnly  bool
	segments  []models.FlowSegment
	available *timestamp.TimeRange
}

var _ Persistence = (*MemoryPersistence)(nil)

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{flows: make(map[string]*memoryFlow)}
}

// AddFlow registers a flow; segments can only be written to known flows.
func (m *MemoryPersistence) AddFlow(flowID string, readOnly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.flows[flowID]; ok {
		f.readOnly = readOnly
		return
	}
	m.flows[flowID] = &memoryFlow{readOnly: readOnly}
}

// AvailableRange returns the bounding range of a flow's segments.
func (m *MemoryPersistence) AvailableRange(flowID string) *timestamp.TimeRange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[flowID]
	if !ok || f.available == nil {
		return nil
	}
	r := *f.available
	return &r
}

func (m *MemoryPersistence) SegmentFlowState(_ context.Context, flowID string) (FlowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[flowID]
	if !ok {
		return FlowState{}, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	return FlowState{ReadOnly: f.readOnly}, nil
}

func (m *MemoryPersistence) OverlappingSegments(_ context.Context, flowID string, r timestamp.TimeRange) ([]models.FlowSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	var out []models.FlowSegment
	for _, seg := range f.segments {
		if seg.TimeRange.Overlaps(r) {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (m *MemoryPersistence) QuerySegments(_ context.Context, flowID string, filter Filter) ([]models.FlowSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}

	out := make([]models.FlowSegment, 0)
	for _, seg := range f.segments {
		if filter.Range != nil && !seg.TimeRange.Overlaps(*filter.Range) {
			continue
		}
		if filter.After != nil {
			c := comparePosition(Position{Start: seg.TimeRange.Start, ObjectID: seg.ObjectID}, *filter.After)
			if (!filter.Reverse && c <= 0) || (filter.Reverse && c >= 0) {
				continue
			}
		}
		out = append(out, seg)
	}
	if filter.Reverse {
		slices.Reverse(out)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryPersistence) ApplySegmentChanges(_ context.Context, flowID string, change Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[flowID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}

	kept := f.segments[:0:0]
	for _, seg := range f.segments {
		if slices.ContainsFunc(change.Remove, func(start timestamp.Timestamp) bool { return start == seg.TimeRange.Start }) {
			continue
		}
		kept = append(kept, seg)
	}
	kept = append(kept, change.Insert...)
	slices.SortFunc(kept, func(a, b models.FlowSegment) int {
		return comparePosition(
			Position{Start: a.TimeRange.Start, ObjectID: a.ObjectID},
			Position{Start: b.TimeRange.Start, ObjectID: b.ObjectID},
		)
	})
	f.segments = kept
	f.available = boundingOf(kept)
	return nil
}

func (m *MemoryPersistence) DeleteAllSegments(_ context.Context, flowID string) ([]models.FlowSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, flowID)
	}
	removed := f.segments
	f.segments = nil
	f.available = nil
	return removed, nil
}

func boundingOf(segments []models.FlowSegment) *timestamp.TimeRange {
	ranges := make([]timestamp.TimeRange, 0, len(segments))
	for _, seg := range segments {
		ranges = append(ranges, seg.TimeRange)
	}
	r, ok := timestamp.BoundingUnion(ranges...)
	if !ok {
		return nil
	}
	return &r
}
