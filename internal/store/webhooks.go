package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tams/internal/models"
)

// UpsertWebhook registers or replaces the subscription for hook.URL.
func (s *Store) UpsertWebhook(ctx context.Context, hook models.Webhook) error {
	events, err := json.Marshal(hook.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	now := formatTime(s.now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhooks (url, api_key_name, api_key_value, events_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			api_key_name = excluded.api_key_name,
			api_key_value = excluded.api_key_value,
			events_json = excluded.events_json,
			updated_at = excluded.updated_at
	`, hook.URL, nullIfEmpty(hook.APIKeyName), nullIfEmpty(hook.APIKeyValue), string(events), now, now)
	return err
}

// DeleteWebhook removes the subscription for url.
func (s *Store) DeleteWebhook(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM webhooks WHERE url = ?", url)
	if err != nil {
		return err
	}
	return requireAffected(res, "webhook", url)
}

// ListWebhooks returns every subscription including API key values.
func (s *Store) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, api_key_name, api_key_value, events_json FROM webhooks ORDER BY created_at, url
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Webhook{}
	for rows.Next() {
		var hook models.Webhook
		var keyName, keyValue sql.NullString
		var events string
		if err := rows.Scan(&hook.URL, &keyName, &keyValue, &events); err != nil {
			return nil, err
		}
		hook.APIKeyName = keyName.String
		hook.APIKeyValue = keyValue.String
		if err := json.Unmarshal([]byte(events), &hook.Events); err != nil {
			return nil, fmt.Errorf("decode events for %s: %w", hook.URL, err)
		}
		out = append(out, hook)
	}
	return out, rows.Err()
}
