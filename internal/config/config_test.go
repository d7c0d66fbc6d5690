package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Fatalf("expected default listen addr, got %q", cfg.Server.ListenAddr)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.Database.Path != "" {
		t.Fatalf("expected empty db path, got %q", cfg.Database.Path)
	}
	if cfg.MediaStorage.MaxFileSize != DefaultMaxFileSize {
		t.Fatalf("expected max file size %d, got %d", DefaultMaxFileSize, cfg.MediaStorage.MaxFileSize)
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.Format != DefaultLogFormat {
		t.Fatalf("unexpected logging defaults %#v", cfg.Logging)
	}
	if cfg.Webhooks.TimeoutSeconds != 30 {
		t.Fatalf("expected webhook timeout 30, got %d", cfg.Webhooks.TimeoutSeconds)
	}
	if cfg.Auth.RequireAuth {
		t.Fatal("auth must be off by default")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".tams.toml")
	if err := os.WriteFile(path, []byte(`api_url = "http://localhost:9999"

[server]
listen_addr = "0.0.0.0:8080"

[media_storage]
base_path = "/srv/media"
max_file_size = 2048

[logging]
level = "warn"
format = "json"

[cors]
allowed_origins = ["https://a.test", "https://b.test"]
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url, got %q", cfg.APIURL)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:8080" {
		t.Fatalf("expected listen addr, got %q", cfg.Server.ListenAddr)
	}
	if cfg.MediaStorage.BasePath != "/srv/media" || cfg.MediaStorage.MaxFileSize != 2048 {
		t.Fatalf("unexpected media storage %#v", cfg.MediaStorage)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging %#v", cfg.Logging)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Pagination.MaxLimit != DefaultMaxPageLimit {
		t.Fatalf("defaults should survive partial files, got %d", cfg.Pagination.MaxLimit)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.tams.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Fatalf("defaults should be preserved")
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".tams.toml")
	if err := os.WriteFile(path, []byte("[server\nlisten_addr ="), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".tams.toml"), []byte(`
[database]
path = "/from/file.db"

[auth]
require_auth = false
`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TAMS_CONFIG_DIR", dir)
	t.Setenv("TAMS_DB", "/from/env.db")
	t.Setenv("TAMS_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("TAMS_PUBLIC_URL", "https://media.example/")
	t.Setenv("TAMS_STORAGE_PATH", "/data/objects")
	t.Setenv("TAMS_JWT_SECRET", "shh")
	t.Setenv("TAMS_REQUIRE_AUTH", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Fatalf("expected env db path, got %q", cfg.Database.Path)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("expected env listen addr, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Service.PublicURLBase != "https://media.example" {
		t.Fatalf("expected trimmed public url, got %q", cfg.Service.PublicURLBase)
	}
	if cfg.MediaStorage.BasePath != "/data/objects" {
		t.Fatalf("expected env storage path, got %q", cfg.MediaStorage.BasePath)
	}
	if !cfg.Auth.RequireAuth || cfg.Auth.JWTSecret != "shh" {
		t.Fatalf("unexpected auth config %#v", cfg.Auth)
	}
}

func TestLoadRejectsInvalidRequireAuth(t *testing.T) {
	t.Setenv("TAMS_CONFIG_DIR", t.TempDir())
	t.Setenv("TAMS_REQUIRE_AUTH", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid TAMS_REQUIRE_AUTH")
	}
}

func TestLoadDerivesDefaults(t *testing.T) {
	t.Setenv("TAMS_CONFIG_DIR", t.TempDir())
	t.Setenv("TAMS_DB", "")
	t.Setenv("TAMS_LISTEN_ADDR", "")
	t.Setenv("TAMS_PUBLIC_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if filepath.Base(cfg.Database.Path) != DefaultDBFileName {
		t.Fatalf("expected default db file, got %q", cfg.Database.Path)
	}
	if filepath.Base(cfg.MediaStorage.BasePath) != DefaultMediaDir {
		t.Fatalf("expected default media dir, got %q", cfg.MediaStorage.BasePath)
	}
	if cfg.Service.PublicURLBase != "http://"+DefaultListenAddr {
		t.Fatalf("expected public url derived from listen addr, got %q", cfg.Service.PublicURLBase)
	}
}

func TestNormalizeRepairsLimits(t *testing.T) {
	cfg := Default()
	cfg.Pagination.DefaultLimit = 5000
	cfg.Pagination.MaxLimit = 50
	cfg.Webhooks.MaxConcurrentDeliveries = 0
	cfg.Logging.Format = "yaml"
	cfg.normalizeDefaults()

	if cfg.Pagination.DefaultLimit != 50 {
		t.Fatalf("default limit must be capped by max, got %d", cfg.Pagination.DefaultLimit)
	}
	if cfg.Webhooks.MaxConcurrentDeliveries != DefaultWebhookMaxConcurrent {
		t.Fatalf("expected concurrency default, got %d", cfg.Webhooks.MaxConcurrentDeliveries)
	}
	if cfg.Logging.Format != "text" {
		t.Fatalf("unknown formats fall back to text, got %q", cfg.Logging.Format)
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{"api_url", "server.listen_addr", "media_storage.max_file_size", "webhooks.seed_file"} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	for _, key := range []string{"", "project_prefix", "server"} {
		if IsAllowedKey(key) {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}

func TestGetEveryAllowedKey(t *testing.T) {
	cfg := Default()
	for _, key := range AllowedKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestGetMasksSecret(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "top-secret"
	val, err := cfg.Get("auth.jwt_secret")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val == "top-secret" {
		t.Fatal("secret must be masked")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "new.toml")
	if err := SetKey(path, "server.listen_addr", "0.0.0.0:7000"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:7000" {
		t.Fatalf("expected listen addr, got %q", cfg.Server.ListenAddr)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("api_url = \"http://keep\"\n\n[webhooks]\ntimeout_seconds = 5\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "webhooks.max_concurrent_deliveries", "4"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetKey(path, "auth.require_auth", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if err := SetKey(path, "cors.allowed_origins", "https://a.test, https://b.test"); err != nil {
		t.Fatalf("set list: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://keep" || cfg.Webhooks.TimeoutSeconds != 5 {
		t.Fatalf("existing values must be preserved, got %q %d", cfg.APIURL, cfg.Webhooks.TimeoutSeconds)
	}
	if cfg.Webhooks.MaxConcurrentDeliveries != 4 || !cfg.Auth.RequireAuth {
		t.Fatalf("unexpected updated values %#v %#v", cfg.Webhooks, cfg.Auth)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestSetKeyRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	cases := map[string]string{
		"invalid_key":                 "value",
		"media_storage.max_file_size": "-1",
		"pagination.max_limit":        "lots",
		"auth.require_auth":           "perhaps",
		"logging.format":              "xml",
	}
	for key, value := range cases {
		if err := SetKey(path, key, value); err == nil {
			t.Fatalf("expected error for %s=%s", key, value)
		}
	}
}
