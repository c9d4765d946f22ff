package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kitdash/internal/repository"
	"kitdash/internal/service/auth"
)

func AdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(adminCreateCmd())
	return cmd
}

func adminCreateCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create an admin account",
		Example: `  kitctl admin create --email ops@example.com --password 'long-password'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := auth.NewService(nil, nil, repository.NewAdminUserRepository(pool),
				cfg.JWT.Secret, cfg.JWT.TTL(), zap.NewNop())
			u, err := svc.CreateAdmin(ctx, email, password)
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("admin %s already exists", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin %s created (id %d)\n",
				color.New(color.FgGreen).Sprint("✓"), u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (min 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
