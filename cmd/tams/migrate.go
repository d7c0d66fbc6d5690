package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"tams/internal/config"
	"tams/internal/store"

	_ "modernc.org/sqlite"
)

// migrationResult is the --json output of an applied migration run.
type migrationResult struct {
	Path        string `json:"path"`
	FromVersion int    `json:"from_version"`
	ToVersion   int    `json:"to_version"`
}

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect catalog schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.Database.Path
			before, err := catalogSchema(path)
			if err != nil {
				return err
			}
			if inspect {
				if *jsonOutput {
					return writeJSON(before)
				}
				return printSchemaStatus(before)
			}

			st, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", path, err)
			}
			if err := st.Close(); err != nil {
				return err
			}

			result := migrationResult{Path: path, FromVersion: before.CurrentVersion, ToVersion: before.AvailableVersion}
			if *jsonOutput {
				return writeJSON(result)
			}
			if result.FromVersion == result.ToVersion {
				return writePlain("catalog %s already at schema version %d\n", path, result.ToVersion)
			}
			return writePlain("catalog %s migrated from schema version %d to %d\n", path, result.FromVersion, result.ToVersion)
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status without applying")
	return cmd
}

// catalogSchema reads the schema version of the catalog at path without
// running migrations.
func catalogSchema(path string) (*store.MigrationStatus, error) {
	dsn, err := store.DSN(path)
	if err != nil {
		return nil, fmt.Errorf("database.path: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	status, err := store.MigrationPlan(db)
	if err != nil {
		return nil, fmt.Errorf("inspect migrations: %w", err)
	}
	return status, nil
}

func printSchemaStatus(status *store.MigrationStatus) error {
	if err := writePlain("schema version %d of %d\n", status.CurrentVersion, status.AvailableVersion); err != nil {
		return err
	}
	for _, m := range status.Pending {
		if err := writePlain("  pending %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}
