package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"tams/internal/api"
	"tams/internal/config"
	"tams/internal/timestamp"
)

func newSegmentsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		start   string
		end     string
		limit   int
		page    string
		reverse bool
	)

	cmd := &cobra.Command{
		Use:   "segments <flow-id>",
		Short: "List the segments of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := segmentQuery(start, end, limit, page, reverse)
			if err != nil {
				return err
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.ListSegments(cmd.Context(), args[0], query)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				for _, seg := range resp.Segments {
					if err := writePlain("%s\n", formatSegmentLine(seg)); err != nil {
						return err
					}
				}
				if resp.Pagination.NextKey != "" {
					return writePlain("next page: --page %s\n", resp.Pagination.NextKey)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "range start timestamp (seconds:nanoseconds)")
	cmd.Flags().StringVar(&end, "end", "", "range end timestamp (seconds:nanoseconds)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&page, "page", "", "page key from a previous listing")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "newest segments first")
	return cmd
}

// segmentQuery validates the range locally so malformed timestamps fail
// before a request is made.
func segmentQuery(start, end string, limit int, page string, reverse bool) (url.Values, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if (start == "") != (end == "") {
		return nil, fmt.Errorf("--start and --end must be given together")
	}
	if start != "" {
		if _, err := timestamp.ParseRange(start, end); err != nil {
			return nil, err
		}
	}
	query := newListQuery(limit, page).with("start", start).with("end", end)
	if reverse {
		query.with("reverse_order", "true")
	}
	return query.values(), nil
}
