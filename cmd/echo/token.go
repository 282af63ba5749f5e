package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/echo/internal/session"
	"github.com/rendis/echo/pkg/schema"
)

func tokenCmd(_ *options) *cobra.Command {
	var (
		uid    string
		secret string
		ttl    time.Duration
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token for the local remote",
		Long: "Mint an HS256 ID token signed with the development remote's secret.\n" +
			"The secret defaults to ECHO_JWT_SECRET.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("ECHO_JWT_SECRET")
			}
			if secret == "" {
				return schema.NewError(schema.ErrCodeValidation, "no secret: pass --secret or set ECHO_JWT_SECRET")
			}
			if uid == "" {
				return schema.NewError(schema.ErrCodeValidation, "--uid is required")
			}
			raw, err := session.Mint([]byte(secret), uid, ttl)
			if err != nil {
				return err
			}
			if save {
				path := tokenPath()
				if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
					return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
				}
				if err := os.WriteFile(path, []byte(raw+"\n"), 0o600); err != nil {
					return fmt.Errorf("save token: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "saved to "+path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "User id to put in the token")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "Also write the token to ~/.echo/token")
	return cmd
}
