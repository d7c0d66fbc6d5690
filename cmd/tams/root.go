package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tams/internal/config"
	"tams/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput   bool
		outputFormat string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:           "tams",
		Short:         "Tams is a time-addressable media store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := installLogger(os.Stderr, logLevel, cfg.Logging)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			if outputFormat != "" {
				formatter, err := format.ByName(outputFormat)
				if err != nil {
					return err
				}
				outputFormatter = formatter
				jsonOutput = true
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "structured output format (json, json-pretty, yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newAdminCmd(cfg, &jsonOutput),
		newTokenCmd(cfg),
		newHashPasswordCmd(),
		newWebhookCmd(cfg, &jsonOutput),
		newFlowCmd(cfg, &jsonOutput),
		newSegmentsCmd(cfg, &jsonOutput),
	)

	return cmd
}
