// Package deletion removes segments and media objects in the background:
// flow delete requests are executed by an Executor, and object payloads
// that lost their last segment reference are reclaimed by a Reaper.
package deletion

import (
	"context"
	"log/slog"
	"time"

	"tams/internal/objectstore"
)

// ObjectCatalog is the part of the catalog that tracks object references.
type ObjectCatalog interface {
	ReapUnreferencedObjects(ctx context.Context, objectIDs []string) ([]string, error)
	ListOrphanedObjects(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// ObjectLocker serializes reaping of an object against new segment
// references to it. *segindex.Index implements it.
type ObjectLocker interface {
	LockObject(id string) func()
}

// GCResult reports one orphan collection pass.
type GCResult struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Reaper deletes object payloads once no segment references them.
type Reaper struct {
	catalog ObjectCatalog
	objects objectstore.ObjectStore
	locks   ObjectLocker
	logger  *slog.Logger
	now     func() time.Time
}

// NewReaper creates a reaper. Segment inserts must take the same object
// locks as locks, or a reference added mid-reap can lose its payload.
func NewReaper(catalog ObjectCatalog, objects objectstore.ObjectStore, locks ObjectLocker, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{catalog: catalog, objects: objects, locks: locks, logger: logger, now: time.Now}
}

// Reap drops the catalog records and payloads of candidate objects that are
// no longer referenced. Each object is checked and deleted under its object
// lock. Payload deletion failures are logged and counted.
func (r *Reaper) Reap(ctx context.Context, candidates []string) (GCResult, error) {
	result := GCResult{Scanned: len(candidates)}
	for _, id := range candidates {
		removed, err := r.reapOne(ctx, id)
		switch {
		case err != nil && removed:
			r.logger.Warn("object payload delete failed", "object_id", id, "error", err)
			result.Failed++
		case err != nil:
			return result, err
		case removed:
			result.Removed++
		}
	}
	if result.Removed > 0 {
		r.logger.Debug("objects reaped", "count", result.Removed)
	}
	return result, nil
}

// reapOne reports whether the catalog dropped id; a non-nil error with
// removed set is a payload delete failure.
func (r *Reaper) reapOne(ctx context.Context, id string) (removed bool, err error) {
	if r.locks != nil {
		unlock := r.locks.LockObject(id)
		defer unlock()
	}
	reaped, err := r.catalog.ReapUnreferencedObjects(ctx, []string{id})
	if err != nil {
		return false, err
	}
	if len(reaped) == 0 {
		return false, nil
	}
	return true, r.objects.Delete(ctx, id)
}

// CollectOrphans reaps recorded objects older than retention that were never
// referenced by a segment, at most limit per pass (0 means no limit).
func (r *Reaper) CollectOrphans(ctx context.Context, retention time.Duration, limit int) (GCResult, error) {
	ids, err := r.catalog.ListOrphanedObjects(ctx, r.now().Add(-retention), limit)
	if err != nil {
		return GCResult{}, err
	}
	return r.Reap(ctx, ids)
}
