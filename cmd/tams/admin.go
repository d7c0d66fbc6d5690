package main

import (
	"github.com/spf13/cobra"

	"tams/internal/api"
	"tams/internal/config"
)

func newAdminCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands",
	}

	cmd.AddCommand(newAdminStatsCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminCleanupStagingCmd(cfg, jsonOutput))
	cmd.AddCommand(newAdminGCObjectsCmd(cfg, jsonOutput))
	return cmd
}

func newAdminStatsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and object store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.AdminStats(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				c := resp.Catalog
				return writePlain("sources: %d\nflows: %d\nsegments: %d\nmedia objects: %d\nwebhooks: %d\npending deletes: %d\nstored objects: %d (%d bytes)\n",
					c.Sources, c.Flows, c.Segments, c.MediaObjects, c.Webhooks, c.PendingDeletes,
					resp.Objects.ObjectCount, resp.Objects.TotalBytes)
			})
		},
	}
}

func newAdminCleanupStagingCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "cleanup-staging",
		Short: "Remove abandoned partial uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.AdminCleanupStaging(cmd.Context(), force)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("staging cleanup: removed=%d failed=%d\n", resp.Removed, resp.Failed)
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm the cleanup (required by the server)")
	return cmd
}

func newAdminGCObjectsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		dryRun bool
		apply  bool
	)

	cmd := &cobra.Command{
		Use:   "gc-objects",
		Short: "Garbage-collect stored objects no segment references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !apply && !dryRun {
				dryRun = true
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.AdminGCObjects(cmd.Context(), !apply, apply)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				mode := "dry run"
				if !resp.DryRun {
					mode = "applied"
				}
				return writePlain("%s: scanned=%d removed=%d failed=%d\n", mode, resp.Scanned, resp.Removed, resp.Failed)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be reclaimed without deleting")
	cmd.Flags().BoolVar(&apply, "apply", false, "delete unreferenced objects")
	return cmd
}
