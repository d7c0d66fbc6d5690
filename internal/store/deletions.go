package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tams/internal/models"
	"tams/internal/timestamp"
)

// DeletionFilter narrows ListDeletionRequests.
type DeletionFilter struct {
	FlowID string
	Status *models.DeletionStatus
	Limit  int
	Offset int
}

const deletionColumns = `
	id, flow_id, start_s, start_ns, end_s, end_ns, status, progress, error, created_at, updated_at`

// CreateDeletionRequest inserts a new request.
func (s *Store) CreateDeletionRequest(ctx context.Context, req *models.DeletionRequest) error {
	if req == nil {
		return fmt.Errorf("deletion request is required")
	}
	var startS, startNS, endS, endNS any
	if req.TimeRange != nil {
		startS, startNS = req.TimeRange.Start.Seconds, req.TimeRange.Start.Nanos
		endS, endNS = req.TimeRange.End.Seconds, req.TimeRange.End.Nanos
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deletion_requests (
			id, flow_id, start_s, start_ns, end_s, end_ns, status, progress, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID,
		req.FlowID,
		startS, startNS, endS, endNS,
		string(req.Status),
		nullInt(req.Progress),
		nullIfEmpty(req.Error),
		formatTime(req.CreatedAt),
		formatTime(req.UpdatedAt),
	)
	return err
}

// GetDeletionRequest returns a request by id.
func (s *Store) GetDeletionRequest(ctx context.Context, id string) (*models.DeletionRequest, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+deletionColumns+" FROM deletion_requests WHERE id = ?", id)
	req, err := scanDeletionRequest(row)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("deletion request %s: %w", id, ErrNotFound)
	}
	return req, nil
}

// ListDeletionRequests returns requests, newest first.
func (s *Store) ListDeletionRequests(ctx context.Context, filter DeletionFilter) ([]models.DeletionRequest, error) {
	query := "SELECT " + deletionColumns + " FROM deletion_requests"
	var where []string
	var args []any
	if filter.FlowID != "" {
		where = append(where, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	query, args = appendLimitOffset(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.DeletionRequest{}
	for rows.Next() {
		req, err := scanDeletionRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// ClaimNextDeletionRequest moves the oldest pending request to running and
// returns it. It returns nil when nothing is pending.
func (s *Store) ClaimNextDeletionRequest(ctx context.Context) (*models.DeletionRequest, error) {
	var claimed *models.DeletionRequest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+deletionColumns+` FROM deletion_requests
			WHERE status = ? ORDER BY created_at, id LIMIT 1`, string(models.DeletionPending))
		req, err := scanDeletionRequest(row)
		if err != nil || req == nil {
			return err
		}
		progress := 0
		if err := transitionTx(ctx, tx, req, models.DeletionRunning, &progress, "", s.now()); err != nil {
			return err
		}
		claimed = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateDeletionProgress records progress (0..100) for a running request.
func (s *Store) UpdateDeletionProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress %d out of range", progress)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE deletion_requests SET progress = ?, updated_at = ? WHERE id = ? AND status = ?
	`, progress, formatTime(s.now()), id, string(models.DeletionRunning))
	if err != nil {
		return err
	}
	return requireAffected(res, "running deletion request", id)
}

// FinishDeletionRequest moves a request to done or error.
func (s *Store) FinishDeletionRequest(ctx context.Context, id string, status models.DeletionStatus, message string) (*models.DeletionRequest, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a terminal status", models.ErrInvalidTransition, status)
	}
	var finished *models.DeletionRequest
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+deletionColumns+" FROM deletion_requests WHERE id = ?", id)
		req, err := scanDeletionRequest(row)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("deletion request %s: %w", id, ErrNotFound)
		}
		var progress *int
		if status == models.DeletionDone {
			full := 100
			progress = &full
		}
		if err := transitionTx(ctx, tx, req, status, progress, message, s.now()); err != nil {
			return err
		}
		finished = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finished, nil
}

// FailInterruptedDeletionRequests marks requests left running by a previous
// process as failed. It returns how many were updated.
func (s *Store) FailInterruptedDeletionRequests(ctx context.Context, message string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE deletion_requests SET status = ?, error = ?, updated_at = ? WHERE status = ?
	`, string(models.DeletionError), message, formatTime(s.now()), string(models.DeletionRunning))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// transitionTx validates and applies a status change, updating req in place.
func transitionTx(ctx context.Context, tx *sql.Tx, req *models.DeletionRequest, next models.DeletionStatus, progress *int, message string, now time.Time) error {
	if !req.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, req.Status, next)
	}
	if progress == nil {
		progress = req.Progress
	}
	now = now.UTC()
	_, err := tx.ExecContext(ctx, `
		UPDATE deletion_requests SET status = ?, progress = ?, error = ?, updated_at = ? WHERE id = ? AND status = ?
	`, string(next), nullInt(progress), nullIfEmpty(message), formatTime(now), req.ID, string(req.Status))
	if err != nil {
		return err
	}
	req.Status = next
	req.Progress = progress
	req.Error = message
	req.UpdatedAt = now
	return nil
}

func scanDeletionRequest(scanner rowScanner) (*models.DeletionRequest, error) {
	var req models.DeletionRequest
	var startS, startNS, endS, endNS, progress sql.NullInt64
	var status, createdAt, updatedAt string
	var message sql.NullString

	if err := scanner.Scan(
		&req.ID,
		&req.FlowID,
		&startS,
		&startNS,
		&endS,
		&endNS,
		&status,
		&progress,
		&message,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	parsed, err := models.ParseDeletionStatus(status)
	if err != nil {
		return nil, err
	}
	req.Status = parsed
	req.Progress = intPtr(progress)
	req.Error = message.String
	if startS.Valid && endS.Valid {
		req.TimeRange = &timestamp.TimeRange{
			Start: timestamp.New(startS.Int64, startNS.Int64),
			End:   timestamp.New(endS.Int64, endNS.Int64),
		}
	}
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}
