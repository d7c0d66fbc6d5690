package main

import (
	"github.com/spf13/cobra"

	"tams/internal/api"
	"tams/internal/config"
)

func newFlowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Inspect flows",
	}

	cmd.AddCommand(newFlowListCmd(cfg, jsonOutput))
	cmd.AddCommand(newFlowGetCmd(cfg, jsonOutput))
	return cmd
}

func newFlowListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		sourceID string
		format   string
		label    string
		limit    int
		page     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := newListQuery(limit, page).
				with("source_id", sourceID).
				with("format", format).
				with("label", label).
				values()

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.ListFlows(cmd.Context(), query)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writeFlowList(resp.Flows); err != nil {
					return err
				}
				if resp.Pagination.NextKey != "" {
					return writePlain("next page: --page %s\n", resp.Pagination.NextKey)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "only flows of this source")
	cmd.Flags().StringVar(&format, "format", "", "only flows of this format (name or URN)")
	cmd.Flags().StringVar(&label, "label", "", "only flows with this label")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&page, "page", "", "page key from a previous listing")
	return cmd
}

func newFlowGetCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <flow-id>",
		Short: "Show one flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				flow, err := client.GetFlow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(flow)
				}
				return writeFlowDetail(flow)
			})
		},
	}
}
