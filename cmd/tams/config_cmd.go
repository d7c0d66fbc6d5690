package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"tams/internal/config"
)

const redacted = "<redacted>"

func newConfigCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get, set or show configuration",
	}

	cmd.AddCommand(newConfigGetCmd(cfg))
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigShowCmd(cfg))
	return cmd
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return fmt.Errorf("unknown key: %s (allowed: %v)", key, config.AllowedKeys())
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			var path string
			var err error
			if global {
				path, err = config.GlobalPath()
			} else {
				path, err = config.ProjectPath()
			}
			if err != nil {
				return err
			}

			return config.SetKey(path, key, value)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to global config (~/.tams.toml)")
	return cmd
}

func newConfigShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(os.Stdout).Encode(redactConfig(*cfg))
		},
	}
}

func redactConfig(cfg config.Config) config.Config {
	if cfg.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = redacted
	}
	if cfg.Auth.BasicAuthPasswordHash != "" {
		cfg.Auth.BasicAuthPasswordHash = redacted
	}
	return cfg
}
