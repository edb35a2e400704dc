package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/security"
	"github.com/spf13/cobra"
)

func newTokenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage operator tokens",
	}

	var (
		subject string
		role    string
		ttl     time.Duration
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a bearer token for the operator endpoints",
		Long: `Signs a token with auth.jwt_secret. The role must be one of
auth.operator_roles for the API to accept it.

Examples:
  recipeflow-admin token mint --subject ops@example.com
  recipeflow-admin token mint --subject ci --role admin --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}

			token, err := security.NewTokenService(cfg.Auth, log).Mint(subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}
	mint.Flags().StringVar(&subject, "subject", "", "who the token is issued to")
	mint.Flags().StringVar(&role, "role", "operator", "role claim")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to auth.jwt_expiration")
	_ = mint.MarkFlagRequired("subject")

	cmd.AddCommand(mint)
	return cmd
}
