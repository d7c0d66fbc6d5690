package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindInt64
	kindBool
	kindList
)

var allowedKeys = []string{
	"api_url",
	"server.listen_addr",
	"database.path",
	"media_storage.base_path",
	"media_storage.staging_path",
	"media_storage.max_file_size",
	"service.name",
	"service.description",
	"service.version",
	"service.public_url_base",
	"auth.require_auth",
	"auth.jwt_secret",
	"auth.basic_auth_username",
	"auth.basic_auth_password_hash",
	"auth.token_ttl_hours",
	"cors.allowed_origins",
	"logging.level",
	"logging.format",
	"pagination.default_limit",
	"pagination.max_limit",
	"cleanup.staging_retention_hours",
	"cleanup.orphaned_object_retention_days",
	"cleanup.interval_minutes",
	"webhooks.timeout_seconds",
	"webhooks.max_concurrent_deliveries",
	"webhooks.seed_file",
	"deletion.poll_interval_seconds",
}

var keyKinds = map[string]keyKind{
	"media_storage.max_file_size":            kindInt64,
	"auth.require_auth":                      kindBool,
	"auth.token_ttl_hours":                   kindInt,
	"cors.allowed_origins":                   kindList,
	"pagination.default_limit":               kindInt,
	"pagination.max_limit":                   kindInt,
	"cleanup.staging_retention_hours":        kindInt,
	"cleanup.orphaned_object_retention_days": kindInt,
	"cleanup.interval_minutes":               kindInt,
	"webhooks.timeout_seconds":               kindInt,
	"webhooks.max_concurrent_deliveries":     kindInt,
	"deletion.poll_interval_seconds":         kindInt,
}

// secretKeys are never printed by Get.
var secretKeys = map[string]struct{}{
	"auth.jwt_secret": {},
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key. Secrets are masked.
func (c *Config) Get(key string) (string, error) {
	if _, secret := secretKeys[key]; secret {
		if c.Auth.JWTSecret == "" {
			return "", nil
		}
		return "********", nil
	}
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "server.listen_addr":
		return c.Server.ListenAddr, nil
	case "database.path":
		return c.Database.Path, nil
	case "media_storage.base_path":
		return c.MediaStorage.BasePath, nil
	case "media_storage.staging_path":
		return c.MediaStorage.StagingPath, nil
	case "media_storage.max_file_size":
		return strconv.FormatInt(c.MediaStorage.MaxFileSize, 10), nil
	case "service.name":
		return c.Service.Name, nil
	case "service.description":
		return c.Service.Description, nil
	case "service.version":
		return c.Service.Version, nil
	case "service.public_url_base":
		return c.Service.PublicURLBase, nil
	case "auth.require_auth":
		return strconv.FormatBool(c.Auth.RequireAuth), nil
	case "auth.basic_auth_username":
		return c.Auth.BasicAuthUsername, nil
	case "auth.basic_auth_password_hash":
		return c.Auth.BasicAuthPasswordHash, nil
	case "auth.token_ttl_hours":
		return strconv.Itoa(c.Auth.TokenTTLHours), nil
	case "cors.allowed_origins":
		return strings.Join(c.CORS.AllowedOrigins, ","), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "pagination.default_limit":
		return strconv.Itoa(c.Pagination.DefaultLimit), nil
	case "pagination.max_limit":
		return strconv.Itoa(c.Pagination.MaxLimit), nil
	case "cleanup.staging_retention_hours":
		return strconv.Itoa(c.Cleanup.StagingRetentionHours), nil
	case "cleanup.orphaned_object_retention_days":
		return strconv.Itoa(c.Cleanup.OrphanedObjectRetentionDays), nil
	case "cleanup.interval_minutes":
		return strconv.Itoa(c.Cleanup.IntervalMinutes), nil
	case "webhooks.timeout_seconds":
		return strconv.Itoa(c.Webhooks.TimeoutSeconds), nil
	case "webhooks.max_concurrent_deliveries":
		return strconv.Itoa(c.Webhooks.MaxConcurrentDeliveries), nil
	case "webhooks.seed_file":
		return c.Webhooks.SeedFile, nil
	case "deletion.poll_interval_seconds":
		return strconv.Itoa(c.Deletion.PollIntervalSeconds), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch keyKinds[key] {
	case kindInt64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case kindInt:
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case kindBool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case kindList:
		return splitCSV(value), nil
	default:
		if key == "logging.format" && value != "text" && value != "json" {
			return nil, fmt.Errorf("%s must be text or json", key)
		}
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
