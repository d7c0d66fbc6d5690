package server

import (
	"context"
	"time"

	"tams/internal/api"
	"tams/internal/deletion"
	"tams/internal/objectstore"
	"tams/internal/store"
)

const (
	defaultStagingRetention = 24 * time.Hour
	defaultOrphanRetention  = 7 * 24 * time.Hour
	gcBatchSize             = 1000
)

// AdminService runs maintenance passes over the object store.
type AdminService struct {
	store            store.CatalogStore
	objects          objectstore.ObjectStore
	reaper           *deletion.Reaper
	stagingRetention time.Duration
	orphanRetention  time.Duration
	now              func() time.Time
}

func NewAdminService(catalog store.CatalogStore, objects objectstore.ObjectStore, reaper *deletion.Reaper, stagingRetention, orphanRetention time.Duration) *AdminService {
	if stagingRetention <= 0 {
		stagingRetention = defaultStagingRetention
	}
	if orphanRetention <= 0 {
		orphanRetention = defaultOrphanRetention
	}
	return &AdminService{
		store:            catalog,
		objects:          objects,
		reaper:           reaper,
		stagingRetention: stagingRetention,
		orphanRetention:  orphanRetention,
		now:              time.Now,
	}
}

func (s *AdminService) CleanupStaging(ctx context.Context) (api.CleanupStagingResponse, error) {
	result, err := s.objects.CleanupExpiredStaging(ctx, s.stagingRetention)
	if err != nil {
		return api.CleanupStagingResponse{}, err
	}
	return api.CleanupStagingResponse{Removed: result.Removed, Failed: result.Failed}, nil
}

// GCObjects reaps recorded objects that no segment ever referenced and that
// are older than the orphan retention. A dry run only counts them.
func (s *AdminService) GCObjects(ctx context.Context, dryRun bool) (api.GCObjectsResponse, error) {
	if dryRun {
		ids, err := s.store.ListOrphanedObjects(ctx, s.now().Add(-s.orphanRetention), gcBatchSize)
		if err != nil {
			return api.GCObjectsResponse{}, err
		}
		return api.GCObjectsResponse{Scanned: len(ids), DryRun: true}, nil
	}
	result, err := s.reaper.CollectOrphans(ctx, s.orphanRetention, gcBatchSize)
	if err != nil {
		return api.GCObjectsResponse{}, err
	}
	return api.GCObjectsResponse{Scanned: result.Scanned, Removed: result.Removed, Failed: result.Failed}, nil
}

func (s *AdminService) Stats(ctx context.Context) (api.StatsResponse, error) {
	objStats, err := s.objects.Stats(ctx)
	if err != nil {
		return api.StatsResponse{}, err
	}
	catalog, err := s.store.Stats(ctx)
	if err != nil {
		return api.StatsResponse{}, err
	}
	return api.StatsResponse{
		Objects: api.ObjectStoreStats{TotalBytes: objStats.TotalBytes, ObjectCount: objStats.ObjectCount},
		Catalog: api.CatalogStats{
			Sources:        catalog.Sources,
			Flows:          catalog.Flows,
			Segments:       catalog.Segments,
			MediaObjects:   catalog.MediaObjects,
			Webhooks:       catalog.Webhooks,
			PendingDeletes: catalog.PendingDelete,
		},
	}, nil
}
