package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kitdash/internal/repository"
)

func MigrateCmd() *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		Long: `Apply the embedded schema to the configured database.
Statements are idempotent, so running migrate twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if printOnly {
				fmt.Fprint(out, repository.Schema())
				return nil
			}

			ctx := cmd.Context()
			_, pool, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repository.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(out, "%s schema applied\n", color.New(color.FgGreen).Sprint("✓"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
