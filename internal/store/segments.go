package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tams/internal/models"
	"tams/internal/segindex"
	"tams/internal/timestamp"
)

var _ segindex.Persistence = (*Store)(nil)

const segmentColumns = `
	flow_id, object_id, start_s, start_ns, end_s, end_ns,
	ts_offset, sample_offset, sample_count, key_frame_count, created_at`

// SegmentFlowState reports whether segments of flowID may be mutated.
func (s *Store) SegmentFlowState(ctx context.Context, flowID string) (segindex.FlowState, error) {
	var readOnly int
	err := s.db.QueryRowContext(ctx, "SELECT read_only FROM flows WHERE id = ?", flowID).Scan(&readOnly)
	if errors.Is(err, sql.ErrNoRows) {
		return segindex.FlowState{}, fmt.Errorf("%w: %s", segindex.ErrFlowNotFound, flowID)
	}
	if err != nil {
		return segindex.FlowState{}, err
	}
	return segindex.FlowState{ReadOnly: readOnly != 0}, nil
}

// OverlappingSegments returns segments of flowID whose range intersects r.
func (s *Store) OverlappingSegments(ctx context.Context, flowID string, r timestamp.TimeRange) ([]models.FlowSegment, error) {
	return querySegmentRows(ctx, s.db, `
		SELECT `+segmentColumns+` FROM segments
		WHERE flow_id = ?
		  AND (start_s, start_ns) < (?, ?)
		  AND (end_s, end_ns) > (?, ?)
		ORDER BY start_s, start_ns, object_id
	`, flowID, r.End.Seconds, r.End.Nanos, r.Start.Seconds, r.Start.Nanos)
}

// QuerySegments returns one ordered page of segments.
func (s *Store) QuerySegments(ctx context.Context, flowID string, filter segindex.Filter) ([]models.FlowSegment, error) {
	query := "SELECT " + segmentColumns + " FROM segments WHERE flow_id = ?"
	args := []any{flowID}

	if filter.Range != nil {
		query += " AND (start_s, start_ns) < (?, ?) AND (end_s, end_ns) > (?, ?)"
		args = append(args, filter.Range.End.Seconds, filter.Range.End.Nanos, filter.Range.Start.Seconds, filter.Range.Start.Nanos)
	}
	if filter.After != nil {
		op := ">"
		if filter.Reverse {
			op = "<"
		}
		query += fmt.Sprintf(" AND (start_s, start_ns, object_id) %s (?, ?, ?)", op)
		args = append(args, filter.After.Start.Seconds, filter.After.Start.Nanos, filter.After.ObjectID)
	}
	if filter.Reverse {
		query += " ORDER BY start_s DESC, start_ns DESC, object_id DESC"
	} else {
		query += " ORDER BY start_s, start_ns, object_id"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	if _, err := s.SegmentFlowState(ctx, flowID); err != nil {
		return nil, err
	}
	return querySegmentRows(ctx, s.db, query, args...)
}

// ApplySegmentChanges removes and inserts segments and recomputes the flow's
// available range in one transaction.
func (s *Store) ApplySegmentChanges(ctx context.Context, flowID string, change segindex.Change) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireFlowTx(ctx, tx, flowID); err != nil {
			return err
		}
		for _, start := range change.Remove {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM segments WHERE flow_id = ? AND start_s = ? AND start_ns = ?",
				flowID, start.Seconds, start.Nanos,
			); err != nil {
				return fmt.Errorf("remove segment at %s: %w", start, err)
			}
		}
		for _, seg := range change.Insert {
			if err := insertSegmentTx(ctx, tx, flowID, seg); err != nil {
				return err
			}
		}
		return refreshAvailableRangeTx(ctx, tx, flowID)
	})
}

// DeleteAllSegments removes every segment of flowID and returns them.
func (s *Store) DeleteAllSegments(ctx context.Context, flowID string) ([]models.FlowSegment, error) {
	var removed []models.FlowSegment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireFlowTx(ctx, tx, flowID); err != nil {
			return err
		}
		segs, err := querySegmentRows(ctx, tx, "SELECT "+segmentColumns+" FROM segments WHERE flow_id = ? ORDER BY start_s, start_ns", flowID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM segments WHERE flow_id = ?", flowID); err != nil {
			return err
		}
		removed = segs
		return refreshAvailableRangeTx(ctx, tx, flowID)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// CountSegments returns the number of segments stored for flowID.
func (s *Store) CountSegments(ctx context.Context, flowID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM segments WHERE flow_id = ?", flowID).Scan(&count)
	return count, err
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySegmentRows(ctx context.Context, q queryer, query string, args ...any) ([]models.FlowSegment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.FlowSegment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *seg)
	}
	return out, rows.Err()
}

func scanSegment(scanner rowScanner) (*models.FlowSegment, error) {
	var seg models.FlowSegment
	var startS, startNS, endS, endNS int64
	var tsOffset sql.NullString
	var sampleOffset, sampleCount, keyFrameCount sql.NullInt64
	var createdAt string

	if err := scanner.Scan(
		&seg.FlowID,
		&seg.ObjectID,
		&startS,
		&startNS,
		&endS,
		&endNS,
		&tsOffset,
		&sampleOffset,
		&sampleCount,
		&keyFrameCount,
		&createdAt,
	); err != nil {
		return nil, err
	}

	seg.TimeRange = timestamp.TimeRange{
		Start: timestamp.New(startS, startNS),
		End:   timestamp.New(endS, endNS),
	}
	if tsOffset.Valid {
		ts, err := timestamp.Parse(tsOffset.String)
		if err != nil {
			return nil, fmt.Errorf("decode ts_offset: %w", err)
		}
		seg.TSOffset = &ts
	}
	seg.SampleOffset = int64Ptr(sampleOffset)
	seg.SampleCount = int64Ptr(sampleCount)
	seg.KeyFrameCount = int64Ptr(keyFrameCount)

	var err error
	if seg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &seg, nil
}

func insertSegmentTx(ctx context.Context, tx *sql.Tx, flowID string, seg models.FlowSegment) error {
	var tsOffset any
	if seg.TSOffset != nil {
		tsOffset = seg.TSOffset.String()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO segments (
			flow_id, object_id, start_s, start_ns, end_s, end_ns,
			ts_offset, sample_offset, sample_count, key_frame_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		flowID,
		seg.ObjectID,
		seg.TimeRange.Start.Seconds,
		seg.TimeRange.Start.Nanos,
		seg.TimeRange.End.Seconds,
		seg.TimeRange.End.Nanos,
		tsOffset,
		nullInt64(seg.SampleOffset),
		nullInt64(seg.SampleCount),
		nullInt64(seg.KeyFrameCount),
		formatTime(seg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", seg.TimeRange, err)
	}
	return nil
}

func requireFlowTx(ctx context.Context, tx *sql.Tx, flowID string) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM flows WHERE id = ?", flowID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", segindex.ErrFlowNotFound, flowID)
	}
	return err
}

// refreshAvailableRangeTx sets the flow's available range to the bounding
// union of its segments, or clears it when none remain.
func refreshAvailableRangeTx(ctx context.Context, tx *sql.Tx, flowID string) error {
	var startS, startNS, endS, endNS int64
	err := tx.QueryRowContext(ctx,
		"SELECT start_s, start_ns FROM segments WHERE flow_id = ? ORDER BY start_s, start_ns LIMIT 1",
		flowID,
	).Scan(&startS, &startNS)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx, `
			UPDATE flows SET avail_start_s = NULL, avail_start_ns = NULL, avail_end_s = NULL, avail_end_ns = NULL
			WHERE id = ?
		`, flowID)
		return err
	}
	if err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT end_s, end_ns FROM segments WHERE flow_id = ? ORDER BY end_s DESC, end_ns DESC LIMIT 1",
		flowID,
	).Scan(&endS, &endNS); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE flows SET avail_start_s = ?, avail_start_ns = ?, avail_end_s = ?, avail_end_ns = ?
		WHERE id = ?
	`, startS, startNS, endS, endNS, flowID)
	return err
}

func distinctSegmentObjects(ctx context.Context, q queryer, flowID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT DISTINCT object_id FROM segments WHERE flow_id = ? ORDER BY object_id", flowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
