package store

import (
	"context"
	"time"

	"tams/internal/models"
	"tams/internal/segindex"
)

// CatalogStore abstracts catalog storage backends.
type CatalogStore interface {
	segindex.Persistence

	CreateSource(ctx context.Context, src *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	SourceExists(ctx context.Context, id string) (bool, error)
	UpdateSource(ctx context.Context, src *models.Source) error
	DeleteSource(ctx context.Context, id string) error
	ListSources(ctx context.Context, filter SourceFilter) ([]models.Source, error)

	CreateFlow(ctx context.Context, flow *models.Flow) error
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
	FlowExists(ctx context.Context, id string) (bool, error)
	UpdateFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) ([]string, error)
	ListFlows(ctx context.Context, filter FlowFilter) ([]models.Flow, error)
	CountSegments(ctx context.Context, flowID string) (int, error)

	UpsertMediaObject(ctx context.Context, obj *models.MediaObject) error
	GetMediaObject(ctx context.Context, objectID string) (*models.MediaObject, error)
	ObjectFlowReferences(ctx context.Context, objectID string) ([]string, error)
	ReapUnreferencedObjects(ctx context.Context, objectIDs []string) ([]string, error)
	ListOrphanedObjects(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	Stats(ctx context.Context) (CatalogStats, error)

	UpsertWebhook(ctx context.Context, hook models.Webhook) error
	DeleteWebhook(ctx context.Context, url string) error
	ListWebhooks(ctx context.Context) ([]models.Webhook, error)

	CreateDeletionRequest(ctx context.Context, req *models.DeletionRequest) error
	GetDeletionRequest(ctx context.Context, id string) (*models.DeletionRequest, error)
	ListDeletionRequests(ctx context.Context, filter DeletionFilter) ([]models.DeletionRequest, error)
	ClaimNextDeletionRequest(ctx context.Context) (*models.DeletionRequest, error)
	UpdateDeletionProgress(ctx context.Context, id string, progress int) error
	FinishDeletionRequest(ctx context.Context, id string, status models.DeletionStatus, message string) (*models.DeletionRequest, error)
	FailInterruptedDeletionRequests(ctx context.Context, message string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

var _ CatalogStore = (*Store)(nil)
