package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"payment-reconciler/internal/config"
	"payment-reconciler/pkg/jwt"
)

func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the admin payment endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != jwt.RoleAdmin && role != jwt.RoleOperator {
				return fmt.Errorf("unknown role %q", role)
			}
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.JWT.Secret
				if ttl <= 0 {
					ttl = time.Duration(cfg.JWT.AccessTokenExpiry) * time.Minute
				}
			}

			token, err := jwt.NewManager(secret, ttl).GenerateAccessToken(subject, role)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET from config)")
	cmd.Flags().StringVar(&subject, "subject", "ops", "Token subject, recorded in admin audit logs")
	cmd.Flags().StringVar(&role, "role", jwt.RoleAdmin, "Role claim (admin or operator)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_ACCESS_EXPIRY)")

	return cmd
}
