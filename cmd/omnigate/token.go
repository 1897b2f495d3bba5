package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omnigatehq/omnigate/internal/auth"
	"github.com/omnigatehq/omnigate/internal/config"
)

func tokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			signed, err := auth.GenerateToken(cfg.Auth, subject)
			if err != nil {
				return err
			}
			fmt.Println(signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	return cmd
}
