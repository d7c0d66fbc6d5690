package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tams/internal/api"
	"tams/internal/models"
	"tams/internal/segindex"
	"tams/internal/store"
)

// DeletionService queues flow delete requests for the background executor.
type DeletionService struct {
	store    store.CatalogStore
	notifier DeletionNotifier
	now      func() time.Time
}

func NewDeletionService(catalog store.CatalogStore, notifier DeletionNotifier) *DeletionService {
	return &DeletionService{store: catalog, notifier: notifier, now: time.Now}
}

// Create validates the target and queues a pending request.
func (s *DeletionService) Create(ctx context.Context, req api.DeletionCreateRequest) (models.DeletionRequest, error) {
	if strings.TrimSpace(req.FlowID) == "" {
		return models.DeletionRequest{}, missingField("flow_id")
	}
	flowID, err := normalizeOptionalID(req.FlowID, "flow_id")
	if err != nil {
		return models.DeletionRequest{}, err
	}
	if req.TimeRange != nil {
		if err := req.TimeRange.Validate(); err != nil {
			return models.DeletionRequest{}, err
		}
	}
	state, err := s.store.SegmentFlowState(ctx, flowID)
	if err != nil {
		return models.DeletionRequest{}, flowNotFound(err)
	}
	if state.ReadOnly {
		return models.DeletionRequest{}, fmt.Errorf("%w: %s", segindex.ErrReadOnlyFlow, flowID)
	}

	now := s.now().UTC()
	dr := models.DeletionRequest{
		ID:        store.NewID(),
		FlowID:    flowID,
		TimeRange: req.TimeRange,
		Status:    models.DeletionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateDeletionRequest(ctx, &dr); err != nil {
		return models.DeletionRequest{}, fmt.Errorf("create delete request: %w", err)
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}
	return dr, nil
}

func (s *DeletionService) Get(ctx context.Context, id string) (models.DeletionRequest, error) {
	dr, err := s.store.GetDeletionRequest(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DeletionRequest{}, notFoundCode(err, ErrCodeDeletionRequestNotFound)
		}
		return models.DeletionRequest{}, err
	}
	return *dr, nil
}

func (s *DeletionService) List(ctx context.Context, filter store.DeletionFilter) ([]models.DeletionRequest, error) {
	return s.store.ListDeletionRequests(ctx, filter)
}
