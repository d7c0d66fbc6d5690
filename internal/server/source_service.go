package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tams/internal/api"
	"tams/internal/models"
	"tams/internal/store"
)

// SourceService validates source requests and publishes source events.
type SourceService struct {
	store     store.CatalogStore
	publisher EventPublisher
	now       func() time.Time
}

func NewSourceService(catalog store.CatalogStore, publisher EventPublisher) *SourceService {
	return &SourceService{store: catalog, publisher: publisher, now: time.Now}
}

// Create creates a source from a request. A supplied id must be unused.
func (s *SourceService) Create(ctx context.Context, req api.SourceCreateRequest) (models.Source, error) {
	format, err := parseFormat(req.Format)
	if err != nil {
		return models.Source{}, err
	}
	id, err := normalizeOptionalID(req.ID, "id")
	if err != nil {
		return models.Source{}, err
	}
	if id != "" {
		exists, err := s.store.SourceExists(ctx, id)
		if err != nil {
			return models.Source{}, err
		}
		if exists {
			return models.Source{}, conflictCode(fmt.Errorf("source %s already exists", id), ErrCodeIDExists)
		}
	} else {
		id = store.NewID()
	}

	now := s.now().UTC()
	src := models.Source{
		ID:          id,
		Format:      format,
		Label:       req.Label,
		Description: req.Description,
		Tags:        normalizeTags(req.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSource(ctx, &src); err != nil {
		return models.Source{}, fmt.Errorf("create source: %w", err)
	}
	s.publisher.Dispatch(models.NewEvent(models.EventSourceCreated, models.SourceEvent{Source: src}))
	return src, nil
}

func (s *SourceService) Get(ctx context.Context, id string) (models.Source, error) {
	src, err := s.store.GetSource(ctx, id)
	if err != nil {
		return models.Source{}, sourceNotFound(err)
	}
	return *src, nil
}

// Update applies the non-nil fields of req. Format is immutable.
func (s *SourceService) Update(ctx context.Context, id string, req api.SourceUpdateRequest) (models.Source, error) {
	src, err := s.store.GetSource(ctx, id)
	if err != nil {
		return models.Source{}, sourceNotFound(err)
	}
	if req.Label != nil {
		src.Label = *req.Label
	}
	if req.Description != nil {
		src.Description = *req.Description
	}
	if req.Tags != nil {
		src.Tags = normalizeTags(req.Tags)
	}
	src.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateSource(ctx, src); err != nil {
		return models.Source{}, sourceNotFound(err)
	}
	s.publisher.Dispatch(models.NewEvent(models.EventSourceUpdated, models.SourceEvent{Source: *src}))
	return *src, nil
}

// Delete removes a source. Its flows survive with no source.
func (s *SourceService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteSource(ctx, id); err != nil {
		return sourceNotFound(err)
	}
	s.publisher.Dispatch(models.NewEvent(models.EventSourceDeleted, models.SourceDeletedEvent{SourceID: id}))
	return nil
}

func (s *SourceService) List(ctx context.Context, filter store.SourceFilter) ([]models.Source, error) {
	return s.store.ListSources(ctx, filter)
}

func sourceNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundCode(err, ErrCodeSourceNotFound)
	}
	return err
}
