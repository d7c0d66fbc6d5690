package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tams/internal/api"
	"tams/internal/deletion"
	"tams/internal/models"
	"tams/internal/objectstore"
	"tams/internal/segindex"
	"tams/internal/timestamp"
)

// SegmentService drives the segment index for one flow at a time.
type SegmentService struct {
	index     *segindex.Index
	objects   objectstore.ObjectStore
	reaper    *deletion.Reaper
	publisher EventPublisher
	logger    *slog.Logger
}

func NewSegmentService(index *segindex.Index, objects objectstore.ObjectStore, reaper *deletion.Reaper, publisher EventPublisher, logger *slog.Logger) *SegmentService {
	return &SegmentService{index: index, objects: objects, reaper: reaper, publisher: publisher, logger: logger}
}

// Add registers one segment. The referenced object need not be uploaded yet.
func (s *SegmentService) Add(ctx context.Context, flowID string, req api.SegmentCreateRequest) (models.FlowSegment, error) {
	objectID := strings.TrimSpace(req.ObjectID)
	if objectID == "" {
		return models.FlowSegment{}, missingField("object_id")
	}
	if err := objectstore.ValidateID(objectID); err != nil {
		return models.FlowSegment{}, err
	}
	if req.TimeRange == nil {
		return models.FlowSegment{}, missingField("timerange")
	}
	if err := validateNonNegative("sample counts", req.SampleOffset, req.SampleCount, req.KeyFrameCount); err != nil {
		return models.FlowSegment{}, err
	}

	seg, err := s.index.Insert(ctx, flowID, models.FlowSegment{
		ObjectID:      objectID,
		TimeRange:     *req.TimeRange,
		TSOffset:      req.TSOffset,
		SampleOffset:  req.SampleOffset,
		SampleCount:   req.SampleCount,
		KeyFrameCount: req.KeyFrameCount,
	})
	if err != nil {
		return models.FlowSegment{}, err
	}
	s.publisher.Dispatch(models.NewEvent(models.EventFlowSegmentsAdded, models.SegmentsAddedEvent{
		FlowID:   flowID,
		Segments: []models.FlowSegment{seg},
	}))
	added := []models.FlowSegment{seg}
	s.attachURLs(ctx, added, nil)
	return added[0], nil
}

// Query returns one page of segments, with download URLs for the objects
// that have been uploaded when includeURLs is set.
func (s *SegmentService) Query(ctx context.Context, flowID string, q segindex.Query, labels []string, includeURLs bool) (segindex.Page, error) {
	page, err := s.index.Query(ctx, flowID, q)
	if err != nil {
		return segindex.Page{}, err
	}
	if includeURLs {
		s.attachURLs(ctx, page.Segments, labels)
	}
	return page, nil
}

// Delete removes segments intersecting tr, or every segment of the flow
// when tr is nil, and reaps objects left unreferenced.
func (s *SegmentService) Delete(ctx context.Context, flowID string, tr *timestamp.TimeRange) (api.SegmentDeleteResponse, error) {
	var (
		resp     api.SegmentDeleteResponse
		released []string
	)
	if tr == nil {
		n, ids, err := s.index.RemoveAllForFlow(ctx, flowID)
		if err != nil {
			return resp, err
		}
		resp.Deleted = n
		released = ids
	} else {
		result, err := s.index.DeleteRange(ctx, flowID, *tr)
		if err != nil {
			return resp, err
		}
		resp.Deleted = result.Deleted
		resp.Remainders = len(result.Remainders)
		released = result.Released
	}

	if len(released) > 0 {
		if _, err := s.reaper.Reap(ctx, released); err != nil {
			s.logger.Warn("object reaping after segment delete failed", "flow_id", flowID, "error", err)
		}
	}
	if resp.Deleted > 0 {
		s.publisher.Dispatch(models.NewEvent(models.EventFlowSegmentsDeleted, models.SegmentsDeletedEvent{
			FlowID:    flowID,
			TimeRange: tr,
			Deleted:   resp.Deleted,
		}))
	}
	return resp, nil
}

func (s *SegmentService) attachURLs(ctx context.Context, segments []models.FlowSegment, labels []string) {
	cache := make(map[string][]models.GetURL, len(segments))
	for i := range segments {
		id := segments[i].ObjectID
		urls, ok := cache[id]
		if !ok {
			var err error
			urls, err = s.objects.DownloadURLs(ctx, id, labels)
			if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
				s.logger.Warn("download url generation failed", "object_id", id, "error", err)
			}
			cache[id] = urls
		}
		segments[i].GetURLs = urls
	}
}
