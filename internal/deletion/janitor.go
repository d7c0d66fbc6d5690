package deletion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tams/internal/objectstore"
)

const defaultJanitorBatch = 1000

// JanitorOptions wires a Janitor. A zero Interval disables the loop.
type JanitorOptions struct {
	Objects          objectstore.ObjectStore
	Reaper           *Reaper
	Interval         time.Duration
	StagingRetention time.Duration
	OrphanRetention  time.Duration
	BatchSize        int
	Logger           *slog.Logger
}

// JanitorResult reports one maintenance pass.
type JanitorResult struct {
	Staging objectstore.CleanupResult
	Orphans GCResult
}

// Janitor periodically clears stale staged uploads and orphaned objects.
type Janitor struct {
	objects          objectstore.ObjectStore
	reaper           *Reaper
	interval         time.Duration
	stagingRetention time.Duration
	orphanRetention  time.Duration
	batch            int
	logger           *slog.Logger
}

func NewJanitor(opts JanitorOptions) *Janitor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultJanitorBatch
	}
	return &Janitor{
		objects:          opts.Objects,
		reaper:           opts.Reaper,
		interval:         opts.Interval,
		stagingRetention: opts.StagingRetention,
		orphanRetention:  opts.OrphanRetention,
		batch:            opts.BatchSize,
		logger:           opts.Logger,
	}
}

// RunOnce performs a single pass. Both halves run even if the first fails.
func (j *Janitor) RunOnce(ctx context.Context) (JanitorResult, error) {
	var (
		result JanitorResult
		errs   []error
	)
	if j.stagingRetention > 0 {
		staging, err := j.objects.CleanupExpiredStaging(ctx, j.stagingRetention)
		if err != nil {
			errs = append(errs, err)
		}
		result.Staging = staging
	}
	if j.reaper != nil && j.orphanRetention > 0 {
		orphans, err := j.reaper.CollectOrphans(ctx, j.orphanRetention, j.batch)
		if err != nil {
			errs = append(errs, err)
		}
		result.Orphans = orphans
	}
	return result, errors.Join(errs...)
}

// Run repeats RunOnce every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Debug("janitor disabled")
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		result, err := j.RunOnce(ctx)
		if err != nil {
			j.logger.Warn("janitor pass failed", "error", err)
		}
		if result.Staging.Removed > 0 || result.Orphans.Removed > 0 {
			j.logger.Info("janitor pass",
				"staging_removed", result.Staging.Removed,
				"orphans_removed", result.Orphans.Removed,
				"failed", result.Staging.Failed+result.Orphans.Failed)
		}
	}
}
