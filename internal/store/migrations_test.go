package store

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"testing"
)

func testRawDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func latestVersion() int {
	latest := 0
	for _, m := range migrations {
		if m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

func TestRunMigrationsFreshDB(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != latestVersion() {
		t.Fatalf("expected version %d, got %d", latestVersion(), version)
	}

	for _, table := range []string{"sources", "flows", "segments", "media_objects", "webhooks", "deletion_requests"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("check %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("%s table not created", table)
		}
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := testRawDB(t)

	if err := runMigrations(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runMigrations(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	version, err := currentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != latestVersion() {
		t.Fatalf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrationPlanReportsPending(t *testing.T) {
	db := testRawDB(t)

	plan, err := MigrationPlan(db)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.CurrentVersion != 0 || len(plan.Pending) != len(migrations) {
		t.Fatalf("unexpected fresh plan %#v", plan)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	plan, err = MigrationPlan(db)
	if err != nil {
		t.Fatalf("plan after run: %v", err)
	}
	if plan.CurrentVersion != plan.AvailableVersion || len(plan.Pending) != 0 {
		t.Fatalf("unexpected plan after run %#v", plan)
	}
}
