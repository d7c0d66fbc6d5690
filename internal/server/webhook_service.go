package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tams/internal/models"
	"tams/internal/store"
	"tams/internal/webhook"
)

// WebhookService keeps the persisted subscriptions and the live registry
// in step.
type WebhookService struct {
	store    store.CatalogStore
	registry *webhook.Registry
}

func NewWebhookService(catalog store.CatalogStore, registry *webhook.Registry) *WebhookService {
	return &WebhookService{store: catalog, registry: registry}
}

// List returns the live subscriptions without their key values.
func (s *WebhookService) List() []models.Webhook {
	hooks := s.registry.List()
	out := make([]models.Webhook, 0, len(hooks))
	for _, hook := range hooks {
		out = append(out, hook.Redacted())
	}
	return out
}

// Create validates and stores a subscription, replacing any existing one
// for the same URL.
func (s *WebhookService) Create(ctx context.Context, hook models.Webhook) (models.Webhook, error) {
	if strings.TrimSpace(hook.URL) == "" {
		return models.Webhook{}, missingField("url")
	}
	if len(hook.Events) == 0 {
		return models.Webhook{}, missingField("events")
	}
	if hook.APIKeyValue != "" && strings.TrimSpace(hook.APIKeyName) == "" {
		return models.Webhook{}, missingField("api_key_name")
	}
	normalized, err := webhook.Normalize(hook)
	if err != nil {
		return models.Webhook{}, err
	}
	if err := s.store.UpsertWebhook(ctx, normalized); err != nil {
		return models.Webhook{}, fmt.Errorf("store webhook: %w", err)
	}
	s.registry.Register(normalized)
	return normalized.Redacted(), nil
}

// Delete removes a subscription. Seeded subscriptions that were never
// persisted are removed from the registry only.
func (s *WebhookService) Delete(ctx context.Context, hookURL string) error {
	hookURL = strings.TrimSpace(hookURL)
	if hookURL == "" {
		return missingField("url")
	}
	err := s.store.DeleteWebhook(ctx, hookURL)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	removed := s.registry.Unregister(hookURL)
	if err != nil && !removed {
		return notFoundCode(fmt.Errorf("webhook %s: %w", hookURL, store.ErrNotFound), ErrCodeWebhookNotFound)
	}
	return nil
}
