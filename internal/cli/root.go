package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kitdash/internal/config"
	"kitdash/pkg/db"
)

// RootCmd kitctl 运维命令入口
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kitctl",
		Short: "kitctl - operations tool for the kitdash dashboard",
		Long: `kitctl applies the database schema, prints the phase catalog,
seeds admin accounts and issues client tokens for support.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(CatalogCmd())
	rootCmd.AddCommand(AdminCmd())
	rootCmd.AddCommand(TokenCmd())
	return rootCmd
}

// openDB 按 CONFIG_ENV 加载配置并连接数据库
func openDB(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewConnection(cfg.DB, zap.NewNop())
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return cfg, pool, nil
}
