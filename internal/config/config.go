package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddr  = "127.0.0.1:5800"
	DefaultAPIURL      = "http://127.0.0.1:5800"
	DefaultDBFileName  = ".tams.db"
	DefaultMediaDir    = ".tams-media"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultServiceName = "tams"
	DefaultServiceDesc = "Time-addressable media store"
	DefaultAPIVersion  = "7.0"

	DefaultMaxFileSize            int64 = 1 << 30
	DefaultPageLimit                    = 100
	DefaultMaxPageLimit                 = 1000
	DefaultStagingRetentionHours        = 24
	DefaultOrphanRetentionDays          = 7
	DefaultCleanupIntervalMinutes       = 60
	DefaultWebhookTimeoutSeconds        = 30
	DefaultWebhookMaxConcurrent         = 16
	DefaultDeletionPollSeconds          = 5
	DefaultTokenTTLHours                = 24

	configFileName           = ".tams.toml"
	configDirEnvKey          = "TAMS_CONFIG_DIR"
	trustProjectConfigEnvKey = "TAMS_TRUST_PROJECT_CONFIG"
)

type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type MediaStorageConfig struct {
	BasePath    string `toml:"base_path"`
	StagingPath string `toml:"staging_path"`
	MaxFileSize int64  `toml:"max_file_size"`
}

type ServiceConfig struct {
	Name          string `toml:"name"`
	Description   string `toml:"description"`
	Version       string `toml:"version"`
	PublicURLBase string `toml:"public_url_base"`
}

// AuthConfig controls the credential gate. When RequireAuth is false every
// request is admitted.
type AuthConfig struct {
	RequireAuth           bool   `toml:"require_auth"`
	JWTSecret             string `toml:"jwt_secret"`
	BasicAuthUsername     string `toml:"basic_auth_username"`
	BasicAuthPasswordHash string `toml:"basic_auth_password_hash"`
	TokenTTLHours         int    `toml:"token_ttl_hours"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type PaginationConfig struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

type CleanupConfig struct {
	StagingRetentionHours       int `toml:"staging_retention_hours"`
	OrphanedObjectRetentionDays int `toml:"orphaned_object_retention_days"`
	IntervalMinutes             int `toml:"interval_minutes"`
}

type WebhookConfig struct {
	TimeoutSeconds          int    `toml:"timeout_seconds"`
	MaxConcurrentDeliveries int    `toml:"max_concurrent_deliveries"`
	SeedFile                string `toml:"seed_file"`
}

type DeletionConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// Config defines runtime configuration for tams.
type Config struct {
	APIURL       string             `toml:"api_url"`
	Server       ServerConfig       `toml:"server"`
	Database     DatabaseConfig     `toml:"database"`
	MediaStorage MediaStorageConfig `toml:"media_storage"`
	Service      ServiceConfig      `toml:"service"`
	Auth         AuthConfig         `toml:"auth"`
	CORS         CORSConfig         `toml:"cors"`
	Logging      LoggingConfig      `toml:"logging"`
	Pagination   PaginationConfig   `toml:"pagination"`
	Cleanup      CleanupConfig      `toml:"cleanup"`
	Webhooks     WebhookConfig      `toml:"webhooks"`
	Deletion     DeletionConfig     `toml:"deletion"`

	TrustedProjectConfigPath string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:       DefaultAPIURL,
		Server:       ServerConfig{ListenAddr: DefaultListenAddr},
		MediaStorage: MediaStorageConfig{MaxFileSize: DefaultMaxFileSize},
		Service: ServiceConfig{
			Name:        DefaultServiceName,
			Description: DefaultServiceDesc,
			Version:     DefaultAPIVersion,
		},
		Auth:       AuthConfig{TokenTTLHours: DefaultTokenTTLHours},
		Logging:    LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Pagination: PaginationConfig{DefaultLimit: DefaultPageLimit, MaxLimit: DefaultMaxPageLimit},
		Cleanup: CleanupConfig{
			StagingRetentionHours:       DefaultStagingRetentionHours,
			OrphanedObjectRetentionDays: DefaultOrphanRetentionDays,
			IntervalMinutes:             DefaultCleanupIntervalMinutes,
		},
		Webhooks: WebhookConfig{
			TimeoutSeconds:          DefaultWebhookTimeoutSeconds,
			MaxConcurrentDeliveries: DefaultWebhookMaxConcurrent,
		},
		Deletion: DeletionConfig{PollIntervalSeconds: DefaultDeletionPollSeconds},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalizeDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TAMS_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("TAMS_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TAMS_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("TAMS_PUBLIC_URL"); v != "" {
		c.Service.PublicURLBase = v
	}
	if v := os.Getenv("TAMS_STORAGE_PATH"); v != "" {
		c.MediaStorage.BasePath = v
	}
	if v := os.Getenv("TAMS_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if raw := strings.TrimSpace(os.Getenv("TAMS_REQUIRE_AUTH")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid TAMS_REQUIRE_AUTH=%q", raw)
		}
		c.Auth.RequireAuth = parsed
	}
	return nil
}

// normalizeDefaults fills derived paths and repairs non-positive limits.
func (c *Config) normalizeDefaults() {
	defaults := Default()
	cwd, _ := os.Getwd()

	if c.Database.Path == "" && cwd != "" {
		c.Database.Path = filepath.Join(cwd, DefaultDBFileName)
	}
	if c.MediaStorage.BasePath == "" && cwd != "" {
		c.MediaStorage.BasePath = filepath.Join(cwd, DefaultMediaDir)
	}
	if c.MediaStorage.MaxFileSize <= 0 {
		c.MediaStorage.MaxFileSize = defaults.MediaStorage.MaxFileSize
	}
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		c.Server.ListenAddr = defaults.Server.ListenAddr
	}
	if c.Service.PublicURLBase == "" {
		c.Service.PublicURLBase = "http://" + c.Server.ListenAddr
	}
	c.Service.PublicURLBase = strings.TrimRight(c.Service.PublicURLBase, "/")
	if c.Service.Name == "" {
		c.Service.Name = defaults.Service.Name
	}
	if c.Service.Version == "" {
		c.Service.Version = defaults.Service.Version
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = defaults.Auth.TokenTTLHours
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Pagination.MaxLimit <= 0 {
		c.Pagination.MaxLimit = defaults.Pagination.MaxLimit
	}
	if c.Pagination.DefaultLimit <= 0 {
		c.Pagination.DefaultLimit = defaults.Pagination.DefaultLimit
	}
	if c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		c.Pagination.DefaultLimit = c.Pagination.MaxLimit
	}
	if c.Cleanup.StagingRetentionHours <= 0 {
		c.Cleanup.StagingRetentionHours = defaults.Cleanup.StagingRetentionHours
	}
	if c.Cleanup.OrphanedObjectRetentionDays <= 0 {
		c.Cleanup.OrphanedObjectRetentionDays = defaults.Cleanup.OrphanedObjectRetentionDays
	}
	if c.Cleanup.IntervalMinutes < 0 {
		c.Cleanup.IntervalMinutes = 0
	}
	if c.Webhooks.TimeoutSeconds <= 0 {
		c.Webhooks.TimeoutSeconds = defaults.Webhooks.TimeoutSeconds
	}
	if c.Webhooks.MaxConcurrentDeliveries <= 0 {
		c.Webhooks.MaxConcurrentDeliveries = defaults.Webhooks.MaxConcurrentDeliveries
	}
	if c.Deletion.PollIntervalSeconds <= 0 {
		c.Deletion.PollIntervalSeconds = defaults.Deletion.PollIntervalSeconds
	}
	c.CORS.AllowedOrigins = splitCSV(strings.Join(c.CORS.AllowedOrigins, ","))
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
