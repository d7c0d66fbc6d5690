package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tams/internal/auth"
)

func newHashPasswordCmd() *cobra.Command {
	var (
		passwordStdin bool
		username      string
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for auth.basic_auth_password_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}
			passwordBytes, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			lines, err := basicAuthConfigLines(username, strings.TrimSpace(string(passwordBytes)))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), lines)
			return err
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().StringVar(&username, "username", "", "also print a normalized basic auth username")
	return cmd
}

func basicAuthConfigLines(username, password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if strings.TrimSpace(username) != "" {
		normalized, err := auth.NormalizeUsername(username)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "basic_auth_username = %q\n", normalized)
	}
	fmt.Fprintf(&b, "basic_auth_password_hash = %q\n", hash)
	return b.String(), nil
}
