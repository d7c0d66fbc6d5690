package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tams/internal/models"
	"tams/internal/segindex"
	"tams/internal/timestamp"
)

const (
	DefaultPollInterval = 5 * time.Second
	interruptedMessage  = "interrupted before completion"
)

// RequestStore persists flow delete requests.
type RequestStore interface {
	ClaimNextDeletionRequest(ctx context.Context) (*models.DeletionRequest, error)
	UpdateDeletionProgress(ctx context.Context, id string, progress int) error
	FinishDeletionRequest(ctx context.Context, id string, status models.DeletionStatus, message string) (*models.DeletionRequest, error)
	FailInterruptedDeletionRequests(ctx context.Context, message string) (int, error)
}

// SegmentRemover is the segment index surface the executor drives.
type SegmentRemover interface {
	DeleteRange(ctx context.Context, flowID string, r timestamp.TimeRange) (segindex.DeleteResult, error)
	RemoveAllForFlow(ctx context.Context, flowID string) (int, []string, error)
}

// Publisher receives lifecycle events.
type Publisher interface {
	Dispatch(event models.Event)
}

// ExecutorOptions wires an Executor.
type ExecutorOptions struct {
	Requests     RequestStore
	Segments     SegmentRemover
	Reaper       *Reaper
	Publisher    Publisher
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Executor claims pending delete requests one at a time and drives them to
// done or error.
type Executor struct {
	requests  RequestStore
	segments  SegmentRemover
	reaper    *Reaper
	publisher Publisher
	interval  time.Duration
	logger    *slog.Logger
	wake      chan struct{}
}

func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{
		requests:  opts.Requests,
		segments:  opts.Segments,
		reaper:    opts.Reaper,
		publisher: opts.Publisher,
		interval:  opts.PollInterval,
		logger:    opts.Logger,
		wake:      make(chan struct{}, 1),
	}
}

// Notify wakes the run loop early. It never blocks.
func (e *Executor) Notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run processes requests until ctx is cancelled. Requests left running by a
// previous process are marked failed first.
func (e *Executor) Run(ctx context.Context) error {
	if n, err := e.requests.FailInterruptedDeletionRequests(ctx, interruptedMessage); err != nil {
		return fmt.Errorf("recover interrupted delete requests: %w", err)
	} else if n > 0 {
		e.logger.Warn("marked interrupted delete requests as failed", "count", n)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.drain(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-e.wake:
		}
	}
}

func (e *Executor) drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := e.ProcessNext(ctx)
		if err != nil {
			e.logger.Error("delete request processing failed", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNext claims and executes one pending request. It reports whether a
// request was claimed.
func (e *Executor) ProcessNext(ctx context.Context) (bool, error) {
	req, err := e.requests.ClaimNextDeletionRequest(ctx)
	if err != nil {
		return false, fmt.Errorf("claim delete request: %w", err)
	}
	if req == nil {
		return false, nil
	}

	logger := e.logger.With("request_id", req.ID, "flow_id", req.FlowID)
	deleted, released, execErr := e.execute(ctx, req)
	if execErr != nil {
		logger.Warn("delete request failed", "error", execErr)
		if _, err := e.requests.FinishDeletionRequest(ctx, req.ID, models.DeletionError, execErr.Error()); err != nil {
			return true, fmt.Errorf("record failure of %s: %w", req.ID, err)
		}
		return true, nil
	}

	if err := e.requests.UpdateDeletionProgress(ctx, req.ID, 50); err != nil {
		logger.Warn("delete request progress update failed", "error", err)
	}
	if e.reaper != nil && len(released) > 0 {
		if _, err := e.reaper.Reap(ctx, released); err != nil {
			logger.Warn("object reaping failed", "error", err)
		}
	}
	if _, err := e.requests.FinishDeletionRequest(ctx, req.ID, models.DeletionDone, ""); err != nil {
		return true, fmt.Errorf("record completion of %s: %w", req.ID, err)
	}
	if deleted > 0 && e.publisher != nil {
		e.publisher.Dispatch(models.NewEvent(models.EventFlowSegmentsDeleted, models.SegmentsDeletedEvent{
			FlowID:    req.FlowID,
			TimeRange: req.TimeRange,
			Deleted:   deleted,
		}))
	}
	logger.Info("delete request done", "deleted", deleted)
	return true, nil
}

func (e *Executor) execute(ctx context.Context, req *models.DeletionRequest) (int, []string, error) {
	if req.TimeRange == nil {
		n, released, err := e.segments.RemoveAllForFlow(ctx, req.FlowID)
		return n, released, describe(err)
	}
	result, err := e.segments.DeleteRange(ctx, req.FlowID, *req.TimeRange)
	return result.Deleted, result.Released, describe(err)
}

// describe shortens known failures to the message stored on the request.
func describe(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, segindex.ErrFlowNotFound):
		return segindex.ErrFlowNotFound
	case errors.Is(err, segindex.ErrReadOnlyFlow):
		return segindex.ErrReadOnlyFlow
	default:
		return err
	}
}
