package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tams/internal/models"
)

// UpsertMediaObject records an uploaded payload. Re-uploading an object id
// refreshes its size and MIME type and keeps the original creation time.
func (s *Store) UpsertMediaObject(ctx context.Context, obj *models.MediaObject) error {
	if obj == nil || obj.ObjectID == "" {
		return fmt.Errorf("object id is required")
	}
	now := s.now().UTC()
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_objects (object_id, size_bytes, mime_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(object_id) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			mime_type = excluded.mime_type,
			updated_at = excluded.updated_at
	`, obj.ObjectID, obj.SizeBytes, nullIfEmpty(obj.MIMEType), formatTime(obj.CreatedAt), formatTime(now))
	return err
}

// GetMediaObject returns an object record with the flows that reference it.
func (s *Store) GetMediaObject(ctx context.Context, objectID string) (*models.MediaObject, error) {
	var obj models.MediaObject
	var mimeType sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT object_id, size_bytes, mime_type, created_at FROM media_objects WHERE object_id = ?
	`, objectID).Scan(&obj.ObjectID, &obj.SizeBytes, &mimeType, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("object %s: %w", objectID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	obj.MIMEType = mimeType.String
	if obj.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if obj.FlowReferences, err = s.ObjectFlowReferences(ctx, objectID); err != nil {
		return nil, err
	}
	return &obj, nil
}

// ObjectFlowReferences lists the flows whose segments point at objectID.
func (s *Store) ObjectFlowReferences(ctx context.Context, objectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT flow_id FROM segments WHERE object_id = ? ORDER BY flow_id", objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		refs = append(refs, id)
	}
	return refs, rows.Err()
}

// ReapUnreferencedObjects deletes the records of the given objects that no
// segment references any more and returns the ids actually removed. Objects
// without a record are reported as removed once no segment references them.
func (s *Store) ReapUnreferencedObjects(ctx context.Context, objectIDs []string) ([]string, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}
	var reaped []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range objectIDs {
			var referenced int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM segments WHERE object_id = ? LIMIT 1", id).Scan(&referenced)
			if err == nil {
				continue
			}
			if err != sql.ErrNoRows {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM media_objects WHERE object_id = ?", id); err != nil {
				return fmt.Errorf("reap object %s: %w", id, err)
			}
			reaped = append(reaped, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reaped, nil
}

// ListOrphanedObjects returns ids of recorded objects created before cutoff
// that no segment references.
func (s *Store) ListOrphanedObjects(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	query := `
		SELECT o.object_id FROM media_objects o
		WHERE o.created_at < ?
		  AND NOT EXISTS (SELECT 1 FROM segments s WHERE s.object_id = o.object_id)
		ORDER BY o.created_at, o.object_id`
	args := []any{formatTime(cutoff)}
	query, args = appendLimitOffset(query, args, limit, 0)

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// CatalogStats summarizes catalog row counts.
type CatalogStats struct {
	Sources       int `json:"sources"`
	Flows         int `json:"flows"`
	Segments      int `json:"segments"`
	MediaObjects  int `json:"media_objects"`
	Webhooks      int `json:"webhooks"`
	PendingDelete int `json:"pending_delete_requests"`
}

// Stats returns catalog row counts.
func (s *Store) Stats(ctx context.Context) (CatalogStats, error) {
	var st CatalogStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sources),
			(SELECT COUNT(*) FROM flows),
			(SELECT COUNT(*) FROM segments),
			(SELECT COUNT(*) FROM media_objects),
			(SELECT COUNT(*) FROM webhooks),
			(SELECT COUNT(*) FROM deletion_requests WHERE status IN ('pending', 'running'))
	`).Scan(&st.Sources, &st.Flows, &st.Segments, &st.MediaObjects, &st.Webhooks, &st.PendingDelete)
	return st, err
}
