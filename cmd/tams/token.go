package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tams/internal/auth"
	"tams/internal/config"
)

func newTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		subject  string
		ttlHours int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with auth.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := mintToken(cfg, subject, ttlHours)
			if err != nil {
				return err
			}
			return writePlain("%s\n", token)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "tams", "token subject")
	cmd.Flags().IntVar(&ttlHours, "ttl", 0, "token lifetime in hours (default: auth.token_ttl_hours)")
	return cmd
}

func mintToken(cfg *config.Config, subject string, ttlHours int) (string, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return "", fmt.Errorf("auth.jwt_secret is not configured (set TAMS_JWT_SECRET or run: tams config set auth.jwt_secret <value>)")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("--subject is required")
	}
	if ttlHours < 0 {
		return "", fmt.Errorf("--ttl must be >= 0")
	}
	if ttlHours == 0 {
		ttlHours = cfg.Auth.TokenTTLHours
	}
	return auth.GenerateToken(subject, []byte(cfg.Auth.JWTSecret), time.Duration(ttlHours)*time.Hour)
}
