package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tams/internal/api"
	"tams/internal/auth"
	"tams/internal/config"
)

const (
	pingTimeout     = 2 * time.Second
	cliTokenSubject = "tams-cli"
	cliTokenTTL     = 5 * time.Minute
)

var errServerUnreachable = errors.New("tams server is not reachable")

func withClient(ctx context.Context, cfg *config.Config, fn func(*api.Client) error) error {
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) {
			return fmt.Errorf("%w at %s: %w", errServerUnreachable, cfg.APIURL, err)
		}
	}

	return fn(client)
}

// newClient builds an API client. Without TAMS_API_TOKEN, a short-lived
// token is minted from the local JWT secret when one is configured.
func newClient(cfg *config.Config) (*api.Client, error) {
	client := api.NewClient(cfg.APIURL)
	if strings.TrimSpace(os.Getenv("TAMS_API_TOKEN")) != "" || cfg.Auth.JWTSecret == "" {
		return client, nil
	}
	token, err := auth.GenerateToken(cliTokenSubject, []byte(cfg.Auth.JWTSecret), cliTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint cli token: %w", err)
	}
	return client.WithToken(token), nil
}
