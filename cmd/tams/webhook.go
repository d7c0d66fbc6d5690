package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tams/internal/api"
	"tams/internal/config"
	"tams/internal/models"
	"tams/internal/webhook"
)

func newWebhookCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage event webhooks",
	}

	cmd.AddCommand(newWebhookListCmd(cfg, jsonOutput))
	cmd.AddCommand(newWebhookAddCmd(cfg, jsonOutput))
	cmd.AddCommand(newWebhookRemoveCmd(cfg))
	cmd.AddCommand(newWebhookExportCmd(cfg))
	return cmd
}

func newWebhookListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered webhooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.ListWebhooks(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				for _, hook := range resp.Webhooks {
					if err := writePlain("%s [%s]\n", hook.URL, strings.Join(hook.Events, ", ")); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newWebhookAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		hookURL     string
		events      []string
		apiKeyName  string
		apiKeyValue string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hook := models.Webhook{
				URL:         strings.TrimSpace(hookURL),
				APIKeyName:  strings.TrimSpace(apiKeyName),
				APIKeyValue: apiKeyValue,
				Events:      events,
			}
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				created, err := client.CreateWebhook(cmd.Context(), hook)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(created)
				}
				return writePlain("registered %s\n", created.URL)
			})
		},
	}

	cmd.Flags().StringVar(&hookURL, "url", "", "delivery URL (required)")
	cmd.Flags().StringSliceVar(&events, "events", nil, "event types, comma-separated or repeated (required)")
	cmd.Flags().StringVar(&apiKeyName, "api-key-name", "", "header name carrying the api key")
	cmd.Flags().StringVar(&apiKeyValue, "api-key-value", "", "api key value sent with each delivery")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("events")
	return cmd
}

func newWebhookRemoveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <url>",
		Short: "Remove a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				if err := client.DeleteWebhook(cmd.Context(), args[0]); err != nil {
					return err
				}
				return writePlain("removed %s\n", args[0])
			})
		},
	}
}

func newWebhookExportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print registered webhooks in seed file format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.ListWebhooks(cmd.Context())
				if err != nil {
					return err
				}
				return webhook.WriteSeed(os.Stdout, resp.Webhooks)
			})
		},
	}
}
