// Package webhook keeps the set of event subscribers and delivers events to
// them without blocking the request that caused the event.
package webhook

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"

	"tams/internal/models"
)

var ErrInvalidURL = errors.New("invalid webhook url")

// Registry is the in-memory subscriber set, keyed by URL.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]models.Webhook
}

func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]models.Webhook)}
}

// Normalize validates a subscription and canonicalizes its event list.
func Normalize(hook models.Webhook) (models.Webhook, error) {
	hook.URL = strings.TrimSpace(hook.URL)
	if err := ValidateURL(hook.URL); err != nil {
		return models.Webhook{}, err
	}
	events, err := models.NormalizeSubscription(hook.Events)
	if err != nil {
		return models.Webhook{}, err
	}
	if len(events) == 0 {
		return models.Webhook{}, fmt.Errorf("%w: at least one event is required", models.ErrInvalidEventType)
	}
	hook.Events = events
	hook.APIKeyName = strings.TrimSpace(hook.APIKeyName)
	return hook, nil
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute http(s) url", ErrInvalidURL, raw)
	}
	return nil
}

// Register adds or replaces the subscription for hook.URL.
func (r *Registry) Register(hook models.Webhook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hook.Events = slices.Clone(hook.Events)
	r.hooks[hook.URL] = hook
}

// Unregister removes a subscription and reports whether it existed.
func (r *Registry) Unregister(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hooks[url]; !ok {
		return false
	}
	delete(r.hooks, url)
	return true
}

// BulkLoad replaces every subscription.
func (r *Registry) BulkLoad(hooks []models.Webhook) {
	next := make(map[string]models.Webhook, len(hooks))
	for _, hook := range hooks {
		hook.Events = slices.Clone(hook.Events)
		next[hook.URL] = hook
	}
	r.mu.Lock()
	r.hooks = next
	r.mu.Unlock()
}

// List returns every subscription ordered by URL, API keys included.
func (r *Registry) List() []models.Webhook {
	r.mu.RLock()
	out := make([]models.Webhook, 0, len(r.hooks))
	for _, hook := range r.hooks {
		out = append(out, hook)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Matching returns the subscribers of eventType.
func (r *Registry) Matching(eventType models.EventType) []models.Webhook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Webhook
	for _, hook := range r.hooks {
		if subscribes(hook.Events, eventType) {
			out = append(out, hook)
		}
	}
	return out
}

func subscribes(events []string, eventType models.EventType) bool {
	for _, e := range events {
		if e == models.EventWildcard || e == string(eventType) {
			return true
		}
	}
	return false
}
