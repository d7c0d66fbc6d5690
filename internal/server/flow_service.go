package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tams/internal/api"
	"tams/internal/deletion"
	"tams/internal/models"
	"tams/internal/segindex"
	"tams/internal/store"
)

// FlowService validates flow requests, owns flow deletion and publishes
// flow events.
type FlowService struct {
	store     store.CatalogStore
	index     *segindex.Index
	reaper    *deletion.Reaper
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewFlowService(catalog store.CatalogStore, index *segindex.Index, reaper *deletion.Reaper, publisher EventPublisher, logger *slog.Logger) *FlowService {
	return &FlowService{
		store:     catalog,
		index:     index,
		reaper:    reaper,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Create creates a flow from a request. A referenced source must exist.
func (s *FlowService) Create(ctx context.Context, req api.FlowCreateRequest) (models.Flow, error) {
	format, err := parseFormat(req.Format)
	if err != nil {
		return models.Flow{}, err
	}
	id, err := normalizeOptionalID(req.ID, "id")
	if err != nil {
		return models.Flow{}, err
	}
	sourceID, err := s.checkSource(ctx, req.SourceID)
	if err != nil {
		return models.Flow{}, err
	}
	if err := validateCollection(req.FlowCollection); err != nil {
		return models.Flow{}, err
	}
	if err := validateNonNegative("bit rate", req.MaxBitRate, req.AvgBitRate); err != nil {
		return models.Flow{}, err
	}

	if id != "" {
		exists, err := s.store.FlowExists(ctx, id)
		if err != nil {
			return models.Flow{}, err
		}
		if exists {
			return models.Flow{}, conflictCode(fmt.Errorf("flow %s already exists", id), ErrCodeIDExists)
		}
	} else {
		id = store.NewID()
	}

	now := s.now().UTC()
	flow := models.Flow{
		ID:             id,
		SourceID:       sourceID,
		Format:         format,
		Label:          req.Label,
		Description:    req.Description,
		Tags:           normalizeTags(req.Tags),
		ReadOnly:       req.ReadOnly,
		MaxBitRate:     req.MaxBitRate,
		AvgBitRate:     req.AvgBitRate,
		Container:      req.Container,
		Codec:          req.Codec,
		FrameWidth:     req.FrameWidth,
		FrameHeight:    req.FrameHeight,
		SampleRate:     req.SampleRate,
		Channels:       req.Channels,
		FlowCollection: req.FlowCollection,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateFlow(ctx, &flow); err != nil {
		return models.Flow{}, fmt.Errorf("create flow: %w", err)
	}
	s.publisher.Dispatch(models.NewEvent(models.EventFlowCreated, models.FlowEvent{Flow: flow}))
	return flow, nil
}

func (s *FlowService) Get(ctx context.Context, id string) (models.Flow, error) {
	flow, err := s.store.GetFlow(ctx, id)
	if err != nil {
		return models.Flow{}, flowNotFound(err)
	}
	return *flow, nil
}

// Update applies the non-nil fields of req. Read-only flows still accept
// attribute updates, including clearing the flag.
func (s *FlowService) Update(ctx context.Context, id string, req api.FlowUpdateRequest) (models.Flow, error) {
	var updated models.Flow
	err := s.index.Exclusive(id, func() error {
		var err error
		updated, err = s.applyUpdate(ctx, id, req)
		return err
	})
	if err != nil {
		return models.Flow{}, err
	}
	s.publisher.Dispatch(models.NewEvent(models.EventFlowUpdated, models.FlowEvent{Flow: updated}))
	return updated, nil
}

// applyUpdate runs with the flow's segment lock held, so a read_only change
// cannot interleave with a segment write.
func (s *FlowService) applyUpdate(ctx context.Context, id string, req api.FlowUpdateRequest) (models.Flow, error) {
	flow, err := s.store.GetFlow(ctx, id)
	if err != nil {
		return models.Flow{}, flowNotFound(err)
	}
	if req.SourceID != nil {
		sourceID, err := s.checkSource(ctx, *req.SourceID)
		if err != nil {
			return models.Flow{}, err
		}
		flow.SourceID = sourceID
	}
	if err := validateCollection(req.FlowCollection); err != nil {
		return models.Flow{}, err
	}
	if err := validateNonNegative("bit rate", req.MaxBitRate, req.AvgBitRate); err != nil {
		return models.Flow{}, err
	}

	if req.Label != nil {
		flow.Label = *req.Label
	}
	if req.Description != nil {
		flow.Description = *req.Description
	}
	if req.Tags != nil {
		flow.Tags = normalizeTags(req.Tags)
	}
	if req.ReadOnly != nil {
		flow.ReadOnly = *req.ReadOnly
	}
	if req.MaxBitRate != nil {
		flow.MaxBitRate = req.MaxBitRate
	}
	if req.AvgBitRate != nil {
		flow.AvgBitRate = req.AvgBitRate
	}
	if req.Container != nil {
		flow.Container = *req.Container
	}
	if req.Codec != nil {
		flow.Codec = *req.Codec
	}
	if req.FrameWidth != nil {
		flow.FrameWidth = req.FrameWidth
	}
	if req.FrameHeight != nil {
		flow.FrameHeight = req.FrameHeight
	}
	if req.SampleRate != nil {
		flow.SampleRate = req.SampleRate
	}
	if req.Channels != nil {
		flow.Channels = req.Channels
	}
	if req.FlowCollection != nil {
		flow.FlowCollection = req.FlowCollection
	}
	flow.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateFlow(ctx, flow); err != nil {
		return models.Flow{}, flowNotFound(err)
	}
	return *flow, nil
}

// Delete removes every segment of the flow, then the flow itself, under the
// flow's segment lock. Objects left without references are reaped.
func (s *FlowService) Delete(ctx context.Context, id string) error {
	var released []string
	err := s.index.Exclusive(id, func() error {
		_, ids, err := s.index.RemoveAllLocked(ctx, id)
		if err != nil {
			return err
		}
		remaining, err := s.store.DeleteFlow(ctx, id)
		if err != nil {
			return err
		}
		released = append(ids, remaining...)
		return nil
	})
	if err != nil {
		return flowNotFound(err)
	}

	if len(released) > 0 {
		result, err := s.reaper.Reap(ctx, released)
		if err != nil {
			s.logger.Warn("object reaping after flow delete failed", "flow_id", id, "error", err)
		} else if result.Removed > 0 || result.Failed > 0 {
			s.logger.Debug("reaped flow objects", "flow_id", id, "removed", result.Removed, "failed", result.Failed)
		}
	}
	s.publisher.Dispatch(models.NewEvent(models.EventFlowDeleted, models.FlowDeletedEvent{FlowID: id}))
	return nil
}

func (s *FlowService) List(ctx context.Context, filter store.FlowFilter) ([]models.Flow, error) {
	return s.store.ListFlows(ctx, filter)
}

func (s *FlowService) checkSource(ctx context.Context, raw string) (string, error) {
	sourceID, err := normalizeOptionalID(raw, "source_id")
	if err != nil || sourceID == "" {
		return sourceID, err
	}
	exists, err := s.store.SourceExists(ctx, sourceID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", badRequestCode(fmt.Errorf("source %s does not exist", sourceID), ErrCodeInvalidID)
	}
	return sourceID, nil
}

func flowNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, segindex.ErrFlowNotFound) {
		return notFoundCode(err, ErrCodeFlowNotFound)
	}
	return err
}
