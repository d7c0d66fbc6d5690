package webhook

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"tams/internal/models"
)

// seedFile is the YAML layout of a webhook seed or export file.
type seedFile struct {
	Webhooks []seedHook `yaml:"webhooks"`
}

type seedHook struct {
	URL         string   `yaml:"url"`
	APIKeyName  string   `yaml:"api_key_name,omitempty"`
	APIKeyValue string   `yaml:"api_key_value,omitempty"`
	Events      []string `yaml:"events"`
}

// LoadSeedFile reads subscriptions from a YAML file. A missing file yields
// no subscriptions.
func LoadSeedFile(path string) ([]models.Webhook, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read webhook seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates YAML seed content.
func ParseSeed(data []byte) ([]models.Webhook, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse webhook seed: %w", err)
	}
	out := make([]models.Webhook, 0, len(file.Webhooks))
	for i, raw := range file.Webhooks {
		hook, err := Normalize(models.Webhook{
			URL:         raw.URL,
			APIKeyName:  raw.APIKeyName,
			APIKeyValue: raw.APIKeyValue,
			Events:      raw.Events,
		})
		if err != nil {
			return nil, fmt.Errorf("webhook seed entry %d: %w", i, err)
		}
		out = append(out, hook)
	}
	return out, nil
}

// WriteSeed encodes hooks in the seed file layout. API key values are
// omitted.
func WriteSeed(w io.Writer, hooks []models.Webhook) error {
	file := seedFile{Webhooks: make([]seedHook, 0, len(hooks))}
	for _, hook := range hooks {
		file.Webhooks = append(file.Webhooks, seedHook{
			URL:        hook.URL,
			APIKeyName: hook.APIKeyName,
			Events:     hook.Events,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return err
	}
	return enc.Close()
}
