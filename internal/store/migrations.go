package store

import (
	"database/sql"
	"fmt"
	"slices"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: sources and flows",
		SQL: `
CREATE TABLE IF NOT EXISTS sources (
  id TEXT PRIMARY KEY,
  format TEXT NOT NULL,
  label TEXT,
  description TEXT,
  tags_json TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS flows (
  id TEXT PRIMARY KEY,
  source_id TEXT,
  format TEXT NOT NULL,
  label TEXT,
  description TEXT,
  tags_json TEXT NOT NULL DEFAULT '{}',
  read_only INTEGER NOT NULL DEFAULT 0,
  max_bit_rate INTEGER,
  avg_bit_rate INTEGER,
  container TEXT,
  codec TEXT,
  frame_width INTEGER,
  frame_height INTEGER,
  sample_rate INTEGER,
  channels INTEGER,
  collection_json TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_flows_source_id ON flows(source_id);
CREATE INDEX IF NOT EXISTS idx_flows_format ON flows(format);
`,
	},
	{
		Version:     2,
		Description: "segments, media objects and flow available range",
		SQL: `
ALTER TABLE flows ADD COLUMN avail_start_s INTEGER;
ALTER TABLE flows ADD COLUMN avail_start_ns INTEGER;
ALTER TABLE flows ADD COLUMN avail_end_s INTEGER;
ALTER TABLE flows ADD COLUMN avail_end_ns INTEGER;

CREATE TABLE IF NOT EXISTS segments (
  flow_id TEXT NOT NULL,
  object_id TEXT NOT NULL,
  start_s INTEGER NOT NULL,
  start_ns INTEGER NOT NULL,
  end_s INTEGER NOT NULL,
  end_ns INTEGER NOT NULL,
  ts_offset TEXT,
  sample_offset INTEGER,
  sample_count INTEGER,
  key_frame_count INTEGER,
  created_at TEXT NOT NULL,
  PRIMARY KEY (flow_id, start_s, start_ns),
  FOREIGN KEY (flow_id) REFERENCES flows(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_segments_object_id ON segments(object_id);
CREATE INDEX IF NOT EXISTS idx_segments_flow_end ON segments(flow_id, end_s, end_ns);

CREATE TABLE IF NOT EXISTS media_objects (
  object_id TEXT PRIMARY KEY,
  size_bytes INTEGER NOT NULL,
  mime_type TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "webhooks and flow delete requests",
		SQL: `
CREATE TABLE IF NOT EXISTS webhooks (
  url TEXT PRIMARY KEY,
  api_key_name TEXT,
  api_key_value TEXT,
  events_json TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS deletion_requests (
  id TEXT PRIMARY KEY,
  flow_id TEXT NOT NULL,
  start_s INTEGER,
  start_ns INTEGER,
  end_s INTEGER,
  end_ns INTEGER,
  status TEXT NOT NULL,
  progress INTEGER,
  error TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deletion_requests_status_created ON deletion_requests(status, created_at);
`,
	},
	{
		Version:     4,
		Description: "list query indexes",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_sources_created_at ON sources(created_at, id);
CREATE INDEX IF NOT EXISTS idx_flows_created_at ON flows(created_at, id);
CREATE INDEX IF NOT EXISTS idx_media_objects_created_at ON media_objects(created_at);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied version, 0 on a fresh database.
func currentVersion(db *sql.DB) (version int, err error) {
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// orderedMigrations returns the migrations sorted by version.
func orderedMigrations() []Migration {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })
	return sorted
}

// runMigrations applies every migration newer than the recorded version,
// each in its own transaction.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range orderedMigrations() {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))", m.Version); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan reports the schema version and pending migrations without
// applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}
	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{CurrentVersion: current, Pending: []MigrationInfo{}}
	for _, m := range orderedMigrations() {
		status.AvailableVersion = m.Version
		if m.Version > current {
			status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}
	return status, nil
}
