package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"tams/internal/models"
	"tams/internal/timestamp"
)

// FlowFilter narrows ListFlows.
type FlowFilter struct {
	SourceID string
	Format   *models.ContentFormat
	Label    string
	Limit    int
	Offset   int
}

const flowColumns = `
	id, source_id, format, label, description, tags_json, read_only,
	max_bit_rate, avg_bit_rate, container, codec, frame_width, frame_height,
	sample_rate, channels, collection_json,
	avail_start_s, avail_start_ns, avail_end_s, avail_end_ns,
	created_at, updated_at`

// CreateFlow inserts a new flow. Its available range starts empty.
func (s *Store) CreateFlow(ctx context.Context, flow *models.Flow) error {
	if flow == nil {
		return fmt.Errorf("flow is required")
	}
	tags, err := encodeTags(flow.Tags)
	if err != nil {
		return err
	}
	collection, err := encodeCollection(flow.FlowCollection)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flows (
			id, source_id, format, label, description, tags_json, read_only,
			max_bit_rate, avg_bit_rate, container, codec, frame_width, frame_height,
			sample_rate, channels, collection_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		flow.ID,
		nullIfEmpty(flow.SourceID),
		string(flow.Format),
		nullIfEmpty(flow.Label),
		nullIfEmpty(flow.Description),
		tags,
		boolToInt(flow.ReadOnly),
		nullInt64(flow.MaxBitRate),
		nullInt64(flow.AvgBitRate),
		nullIfEmpty(flow.Container),
		nullIfEmpty(flow.Codec),
		nullInt(flow.FrameWidth),
		nullInt(flow.FrameHeight),
		nullInt(flow.SampleRate),
		nullInt(flow.Channels),
		collection,
		formatTime(flow.CreatedAt),
		formatTime(flow.UpdatedAt),
	)
	return err
}

// GetFlow returns a flow by id, including its available time range.
func (s *Store) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+flowColumns+" FROM flows WHERE id = ?", id)
	flow, err := scanFlow(row)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, fmt.Errorf("flow %s: %w", id, ErrNotFound)
	}
	return flow, nil
}

// FlowExists reports whether a flow id is known.
func (s *Store) FlowExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM flows WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateFlow replaces the descriptive attributes of a flow. The available
// range is owned by the segment index and is left untouched.
func (s *Store) UpdateFlow(ctx context.Context, flow *models.Flow) error {
	tags, err := encodeTags(flow.Tags)
	if err != nil {
		return err
	}
	collection, err := encodeCollection(flow.FlowCollection)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE flows SET
			source_id = ?, format = ?, label = ?, description = ?, tags_json = ?, read_only = ?,
			max_bit_rate = ?, avg_bit_rate = ?, container = ?, codec = ?, frame_width = ?,
			frame_height = ?, sample_rate = ?, channels = ?, collection_json = ?, updated_at = ?
		WHERE id = ?
	`,
		nullIfEmpty(flow.SourceID),
		string(flow.Format),
		nullIfEmpty(flow.Label),
		nullIfEmpty(flow.Description),
		tags,
		boolToInt(flow.ReadOnly),
		nullInt64(flow.MaxBitRate),
		nullInt64(flow.AvgBitRate),
		nullIfEmpty(flow.Container),
		nullIfEmpty(flow.Codec),
		nullInt(flow.FrameWidth),
		nullInt(flow.FrameHeight),
		nullInt(flow.SampleRate),
		nullInt(flow.Channels),
		collection,
		formatTime(flow.UpdatedAt),
		flow.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "flow", flow.ID)
}

// DeleteFlow removes a flow together with all of its segments and returns
// the distinct object ids those segments referenced.
func (s *Store) DeleteFlow(ctx context.Context, id string) ([]string, error) {
	var objectIDs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ids, err := distinctSegmentObjects(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM flows WHERE id = ?", id)
		if err != nil {
			return err
		}
		if err := requireAffected(res, "flow", id); err != nil {
			return err
		}
		objectIDs = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objectIDs, nil
}

// ListFlows returns flows ordered by creation time.
func (s *Store) ListFlows(ctx context.Context, filter FlowFilter) ([]models.Flow, error) {
	query := "SELECT " + flowColumns + " FROM flows"
	var where []string
	var args []any
	if filter.SourceID != "" {
		where = append(where, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.Format != nil {
		where = append(where, "format = ?")
		args = append(args, string(*filter.Format))
	}
	if filter.Label != "" {
		where = append(where, "label = ?")
		args = append(args, filter.Label)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	query, args = appendLimitOffset(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Flow{}
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *flow)
	}
	return out, rows.Err()
}

func scanFlow(scanner rowScanner) (*models.Flow, error) {
	var flow models.Flow
	var sourceID, label, description, container, codec, collection sql.NullString
	var format, tags, createdAt, updatedAt string
	var readOnly int
	var maxBitRate, avgBitRate, frameWidth, frameHeight, sampleRate, channels sql.NullInt64
	var availStartS, availStartNS, availEndS, availEndNS sql.NullInt64

	if err := scanner.Scan(
		&flow.ID,
		&sourceID,
		&format,
		&label,
		&description,
		&tags,
		&readOnly,
		&maxBitRate,
		&avgBitRate,
		&container,
		&codec,
		&frameWidth,
		&frameHeight,
		&sampleRate,
		&channels,
		&collection,
		&availStartS,
		&availStartNS,
		&availEndS,
		&availEndNS,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	flow.SourceID = sourceID.String
	flow.Format = models.ContentFormat(format)
	flow.Label = label.String
	flow.Description = description.String
	flow.ReadOnly = readOnly != 0
	flow.MaxBitRate = int64Ptr(maxBitRate)
	flow.AvgBitRate = int64Ptr(avgBitRate)
	flow.Container = container.String
	flow.Codec = codec.String
	flow.FrameWidth = intPtr(frameWidth)
	flow.FrameHeight = intPtr(frameHeight)
	flow.SampleRate = intPtr(sampleRate)
	flow.Channels = intPtr(channels)

	var err error
	if flow.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if collection.Valid && collection.String != "" {
		var fc models.FlowCollection
		if err := json.Unmarshal([]byte(collection.String), &fc); err != nil {
			return nil, fmt.Errorf("decode flow collection: %w", err)
		}
		flow.FlowCollection = &fc
	}
	if availStartS.Valid && availEndS.Valid {
		flow.AvailableTimeRange = &timestamp.TimeRange{
			Start: timestamp.New(availStartS.Int64, availStartNS.Int64),
			End:   timestamp.New(availEndS.Int64, availEndNS.Int64),
		}
	}
	if flow.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if flow.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &flow, nil
}

func encodeCollection(fc *models.FlowCollection) (any, error) {
	if fc == nil {
		return nil, nil
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode flow collection: %w", err)
	}
	return string(data), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
