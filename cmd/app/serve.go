package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ops-bot/internal/cache"
	"ops-bot/internal/catalog"
	"ops-bot/internal/config"
	"ops-bot/internal/convo"
	"ops-bot/internal/httpserver"
	"ops-bot/internal/session"
	"ops-bot/internal/telegram"
	"ops-bot/internal/wa"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat transport and the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	b, err := loadBootstrap()
	if err != nil {
		return err
	}
	cfg, logger := b.cfg, b.logger
	logger.Info("starting ops-bot", "env", cfg.AppEnv, "transport", cfg.Transport)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repository, err := b.openRepository(ctx)
	if err != nil {
		return err
	}
	defer repository.Close()

	redisClient := b.openRedis(ctx)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
	}

	products := catalog.New(repository, redisClient, catalog.Config{
		TTL:       cfg.CatalogCacheTTL,
		KeyPrefix: cfg.MetricsNamespace + ":catalog:",
	}, b.metrics, logger)

	sessions, locker := sessionBackend(cfg, redisClient)
	logger.Info("session backend ready", "backend", cfg.SessionBackend, "ttl", cfg.SessionTTL)

	engine := convo.New(repository, products, sessions, locker, b.metrics, logger, convo.EngineConfig{
		PageSize: cfg.PageSize,
		Location: cfg.Location,
	})

	runTransport, closeTransport, err := startTransport(ctx, b, engine)
	if err != nil {
		return err
	}
	defer closeTransport()

	deps := httpserver.Dependencies{
		Repository: repository,
		Catalog:    products,
		Sessions:   engine,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, b.metrics, deps, cfg.PublicBasePath)

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := runTransport(ctx); err != nil {
			errCh <- fmt.Errorf("%s transport: %w", cfg.Transport, err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}

// sessionBackend picks the session store and the per-chat locker. The Redis
// backend shares both across processes.
func sessionBackend(cfg *config.Config, redisClient *cache.Redis) (session.Store, session.Locker) {
	if cfg.SessionBackend == config.SessionRedis && redisClient != nil {
		client := redisClient.Client()
		prefix := cfg.MetricsNamespace + ":"
		store := session.NewRedisStore(client, session.WithKeyPrefix(prefix+"session:"), session.WithExpiry(cfg.SessionTTL))
		return store, session.NewRedisLocker(client, prefix, 30*time.Second)
	}
	return session.NewMemoryStore(session.WithTTL(cfg.SessionTTL)), session.NewLocalLocker()
}

// startTransport connects the configured chat transport. The returned run
// function blocks until ctx ends for polling transports and returns at once
// for event-driven ones.
func startTransport(ctx context.Context, b *bootstrap, engine *convo.Engine) (func(context.Context) error, func(), error) {
	switch b.cfg.Transport {
	case config.TransportTelegram:
		client, err := telegram.New(telegram.Config{
			Token:   b.cfg.TelegramToken,
			Metrics: b.metrics,
		}, engine, b.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init telegram client: %w", err)
		}
		return client.Run, func() {}, nil
	default:
		client, err := wa.New(ctx, wa.Config{
			StorePath: b.cfg.WhatsAppStorePath,
			LogLevel:  b.cfg.WhatsAppLogLevel,
			Metrics:   b.metrics,
		}, b.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init whatsapp client: %w", err)
		}
		client.SetDialogue(engine)
		return client.Start, client.Close, nil
	}
}
