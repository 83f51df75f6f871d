package main

import (
	"fmt"
	"time"

	"beatstore-media-service/internal/auth"

	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		email string
		role  string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			validator, err := auth.NewTokenValidator(cfg)
			if err != nil {
				return err
			}
			token, err := validator.GenerateToken(email, email, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Buyer email to put into the token")
	cmd.Flags().StringVar(&role, "role", "USER", "Role claim, the configured admin role bypasses ownership checks")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	return cmd
}
