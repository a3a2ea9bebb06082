package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"ops-bot/internal/cache"
	"ops-bot/internal/config"
	"ops-bot/internal/logging"
	"ops-bot/internal/metrics"
	"ops-bot/internal/repo"
	"ops-bot/migrations"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	cmd := &cobra.Command{
		Use:           "app",
		Short:         "Chat assistant for clients, products, orders and sales",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap is shared by every command: configuration, logger and metrics.
type bootstrap struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func loadBootstrap() (*bootstrap, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &bootstrap{
		cfg:     cfg,
		logger:  logging.NewLogger(cfg.LogLevel, logging.WithFormat(cfg.LogFormat)),
		metrics: metrics.Registry(cfg.MetricsNamespace),
	}, nil
}

// openRepository connects to Postgres, or to SQLite when no database URL is
// set, and applies pending migrations.
func (b *bootstrap) openRepository(ctx context.Context) (repo.Repository, error) {
	var repository repo.Repository
	if b.cfg.UsesSQLite() {
		sqliteRepo, err := repo.NewSQLite(ctx, b.cfg.SQLitePath, b.logger)
		if err != nil {
			return nil, fmt.Errorf("init sqlite repository: %w", err)
		}
		b.logger.Info("using sqlite repository", "path", b.cfg.SQLitePath)
		repository = sqliteRepo
	} else {
		pgRepo, err := repo.New(ctx, b.cfg.DatabaseURL, b.cfg.SupabaseSchema, b.logger)
		if err != nil {
			return nil, fmt.Errorf("init repository: %w", err)
		}
		repository = pgRepo
	}

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		repository.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	b.logger.Info("database migrated")
	return repo.NewInstrumented(repository, b.metrics), nil
}

// openRedis returns nil when no Redis address is configured.
func (b *bootstrap) openRedis(ctx context.Context) *cache.Redis {
	if b.cfg.RedisAddr == "" {
		return nil
	}
	redisClient := cache.New(cache.Config{
		Addr:     b.cfg.RedisAddr,
		Password: b.cfg.RedisPassword,
		DB:       b.cfg.RedisDB,
		UseTLS:   b.cfg.RedisTLS,
	}, b.logger)
	if err := redisClient.Ping(ctx); err != nil {
		b.logger.Warn("redis ping failed", "error", err)
	}
	return redisClient
}
