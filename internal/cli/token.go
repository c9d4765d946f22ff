package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kitdash/internal/config"
	"kitdash/internal/service/auth"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue tokens for support and testing",
	}
	cmd.AddCommand(tokenIssueCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	var (
		email  string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a client token for an email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.JWT.Secret
				if ttl == 0 {
					ttl = cfg.JWT.TTL()
				}
			}
			if ttl == 0 {
				ttl = 24 * time.Hour
			}

			svc := auth.NewService(nil, nil, nil, secret, ttl, zap.NewNop())
			token, err := svc.IssueClientToken(email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "client email")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: jwt.secret from config)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: jwt.ttl_hours from config)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
