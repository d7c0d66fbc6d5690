package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"tams/internal/models"
)

// SourceFilter narrows ListSources.
type SourceFilter struct {
	Label  string
	Format *models.ContentFormat
	Limit  int
	Offset int
}

// CreateSource inserts a new source.
func (s *Store) CreateSource(ctx context.Context, src *models.Source) error {
	if src == nil {
		return fmt.Errorf("source is required")
	}
	tags, err := encodeTags(src.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources (id, format, label, description, tags_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		src.ID,
		string(src.Format),
		nullIfEmpty(src.Label),
		nullIfEmpty(src.Description),
		tags,
		formatTime(src.CreatedAt),
		formatTime(src.UpdatedAt),
	)
	return err
}

// GetSource returns a source by id.
func (s *Store) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, format, label, description, tags_json, created_at, updated_at
		FROM sources WHERE id = ?
	`, id)
	src, err := scanSource(row)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return src, nil
}

// SourceExists reports whether a source id is known.
func (s *Store) SourceExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM sources WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateSource replaces the mutable attributes of a source.
func (s *Store) UpdateSource(ctx context.Context, src *models.Source) error {
	tags, err := encodeTags(src.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sources SET format = ?, label = ?, description = ?, tags_json = ?, updated_at = ?
		WHERE id = ?
	`,
		string(src.Format),
		nullIfEmpty(src.Label),
		nullIfEmpty(src.Description),
		tags,
		formatTime(src.UpdatedAt),
		src.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "source", src.ID)
}

// DeleteSource removes a source. Flows that referenced it keep existing with
// no source.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "source", id)
}

// ListSources returns sources ordered by creation time.
func (s *Store) ListSources(ctx context.Context, filter SourceFilter) ([]models.Source, error) {
	query := `SELECT id, format, label, description, tags_json, created_at, updated_at FROM sources`
	var where []string
	var args []any
	if filter.Label != "" {
		where = append(where, "label = ?")
		args = append(args, filter.Label)
	}
	if filter.Format != nil {
		where = append(where, "format = ?")
		args = append(args, string(*filter.Format))
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

	out := []models.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

func scanSource(scanner rowScanner) (*models.Source, error) {
	var src models.Source
	var format, tags string
	var label, description sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(&src.ID, &format, &label, &description, &tags, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	src.Format = models.ContentFormat(format)
	src.Label = label.String
	src.Description = description.String
	var err error
	if src.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	if src.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if src.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &src, nil
}

func encodeTags(tags map[string]string) (string, error) {
	if len(tags) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func decodeTags(raw string) (map[string]string, error) {
	tags := map[string]string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func appendLimitOffset(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}
	return query, args
}
