package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tams/internal/auth"
	"tams/internal/config"
	"tams/internal/models"
	"tams/internal/store"
)

func TestRootCommandTree(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&cfg)

	for _, path := range [][]string{
		{"srv"},
		{"migrate"},
		{"config", "get"},
		{"config", "set"},
		{"config", "show"},
		{"admin", "stats"},
		{"admin", "cleanup-staging"},
		{"admin", "gc-objects"},
		{"token"},
		{"hash-password"},
		{"webhook", "list"},
		{"webhook", "add"},
		{"webhook", "rm"},
		{"webhook", "export"},
		{"flow", "list"},
		{"flow", "get"},
		{"segments"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not found: %v", path, err)
		}
	}
}

func TestMintToken(t *testing.T) {
	cfg := config.Default()
	if _, err := mintToken(&cfg, "ingest", 0); err == nil {
		t.Fatal("expected error without jwt secret")
	}

	cfg.Auth.JWTSecret = "test-secret"
	if _, err := mintToken(&cfg, " ", 0); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := mintToken(&cfg, "ingest", -1); err == nil {
		t.Fatal("expected error for negative ttl")
	}

	token, err := mintToken(&cfg, "ingest", 0)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := auth.ParseToken(token, []byte("test-secret"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "ingest" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 23*time.Hour || ttl > 24*time.Hour {
		t.Fatalf("expected default ttl near 24h, got %s", ttl)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	cmd := newHashPasswordCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("correct horse battery\n"))
	cmd.SetArgs([]string{"--password-stdin", "--username", "Editor"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || lines[0] != `basic_auth_username = "editor"` {
		t.Fatalf("unexpected output: %q", out.String())
	}
	hash := strings.TrimSuffix(strings.TrimPrefix(lines[1], `basic_auth_password_hash = "`), `"`)
	if !auth.VerifyPassword(hash, "correct horse battery") {
		t.Fatalf("hash does not verify: %q", lines[1])
	}
}

func TestHashPasswordRequiresStdinAndLength(t *testing.T) {
	cmd := newHashPasswordCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --password-stdin")
	}

	if _, err := basicAuthConfigLines("", "short"); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestCheckAuthConfig(t *testing.T) {
	if err := checkAuthConfig(config.AuthConfig{RequireAuth: true}); err == nil {
		t.Fatal("expected error without credentials")
	}
	if err := checkAuthConfig(config.AuthConfig{RequireAuth: true, JWTSecret: "s"}); err != nil {
		t.Fatalf("jwt secret should suffice: %v", err)
	}
	if err := checkAuthConfig(config.AuthConfig{RequireAuth: true, BasicAuthUsername: "u"}); err == nil {
		t.Fatal("expected error for username without hash")
	}
	if err := checkAuthConfig(config.AuthConfig{RequireAuth: true, BasicAuthUsername: "u", BasicAuthPasswordHash: "h"}); err != nil {
		t.Fatalf("basic credentials should suffice: %v", err)
	}
}

func TestLoadWebhooksPersistedWinOverSeed(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "tams.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	seed := "webhooks:\n" +
		"  - url: http://hooks.test/a\n    events: [flow.created]\n" +
		"  - url: http://hooks.test/b\n    events: [flow.deleted]\n"
	seedPath := filepath.Join(dir, "webhooks.yaml")
	if err := os.WriteFile(seedPath, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	ctx := context.Background()
	persisted := models.Webhook{URL: "http://hooks.test/a", Events: []string{"source.created"}}
	if err := st.UpsertWebhook(ctx, persisted); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := loadWebhooks(ctx, st, seedPath, logger)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	hooks := registry.List()
	if len(hooks) != 2 {
		t.Fatalf("expected 2 hooks, got %+v", hooks)
	}
	if hooks[0].URL != "http://hooks.test/a" || hooks[0].Events[0] != "source.created" {
		t.Fatalf("persisted hook should win, got %+v", hooks[0])
	}

	if _, err := loadWebhooks(ctx, st, filepath.Join(dir, "missing.yaml"), logger); err != nil {
		t.Fatalf("missing seed file should be ignored: %v", err)
	}
}

func TestSegmentQuery(t *testing.T) {
	q, err := segmentQuery("0:0", "10:0", 5, "cursor", true)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if q.Get("start") != "0:0" || q.Get("end") != "10:0" || q.Get("limit") != "5" || q.Get("page") != "cursor" || q.Get("reverse_order") != "true" {
		t.Fatalf("unexpected query: %v", q)
	}

	if _, err := segmentQuery("0:0", "", 0, "", false); err == nil {
		t.Fatal("expected error for half range")
	}
	if _, err := segmentQuery("10:0", "0:0", 0, "", false); err == nil {
		t.Fatal("expected error for inverted range")
	}

	q, err = segmentQuery("", "", 0, "", false)
	if err != nil || len(q) != 0 {
		t.Fatalf("expected empty query, got %v (%v)", q, err)
	}
}

func TestRedactConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Auth.BasicAuthPasswordHash = "$2a$10$hash"

	out := redactConfig(cfg)
	if out.Auth.JWTSecret != redacted || out.Auth.BasicAuthPasswordHash != redacted {
		t.Fatalf("secrets not redacted: %+v", out.Auth)
	}
	if cfg.Auth.JWTSecret != "secret" {
		t.Fatal("redaction must not modify the caller's config")
	}
}

func TestFormatFlowLine(t *testing.T) {
	flow := models.Flow{ID: "f1", Format: models.FormatVideo, Label: "camera 1", ReadOnly: true}
	if got := formatFlowLine(flow); got != "f1 [video] [read-only] - camera 1" {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestListQuerySkipsBlankValues(t *testing.T) {
	q := newListQuery(0, " ").with("label", "cam 1").with("format", "").values()
	if len(q) != 1 || q.Get("label") != "cam 1" {
		t.Fatalf("unexpected query: %v", q)
	}
	if got := newListQuery(20, "abc").values().Encode(); got != "limit=20&page=abc" {
		t.Fatalf("unexpected encoding %q", got)
	}
}

func TestCatalogSchemaBeforeAndAfterMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	before, err := catalogSchema(path)
	if err != nil {
		t.Fatalf("inspect fresh catalog: %v", err)
	}
	if before.CurrentVersion != 0 || len(before.Pending) == 0 {
		t.Fatalf("expected pending migrations on a fresh catalog, got %+v", before)
	}

	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	st.Close()

	after, err := catalogSchema(path)
	if err != nil {
		t.Fatalf("inspect migrated catalog: %v", err)
	}
	if after.CurrentVersion != after.AvailableVersion || len(after.Pending) != 0 {
		t.Fatalf("expected an up to date catalog, got %+v", after)
	}
}
