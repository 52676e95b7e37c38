package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawtap/server/internal/adapter"
	"github.com/pawtap/server/internal/app"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/handler"
	"github.com/pawtap/server/internal/infra"
	"github.com/pawtap/server/internal/repository"
	"github.com/pawtap/server/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	catalog, err := infra.LoadCatalog(cfg.GameConfigPath)
	if err != nil {
		return fmt.Errorf("load game config: %w", err)
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	checks := map[string]handler.HealthCheck{
		"postgres": func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) },
	}

	// Cache: shared Redis when configured, process memory otherwise
	var backend cache.Backend = cache.NewMemoryBackend()
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory cache", "error", err)
		} else {
			defer client.Close()
			backend = cache.NewRedisBackend(client)
			logger.Info("connected to redis")
		}
	}
	c := cache.New(backend, logger, cache.WithPrefix(cfg.CachePrefix), cache.WithProbeInterval(cfg.CacheProbeAt))

	// Background work stops when bgCtx is cancelled, after the HTTP server drained.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	a := app.New(bgCtx, app.Deps{
		Config: cfg,
		Pool:   pool,
		Cache:  c,
		Rules:  catalog.Rules,
		Checks: checks,
		Logger: logger,
	})

	// Outbox relay: Kafka when enabled, in-process notifications otherwise
	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	var publisher infra.EventPublisher = producer
	if !producer.Enabled() {
		publisher = localRelay(pool, c, logger)
	}
	infra.NewOutboxPoller(pool, repository.NewOutboxRepository(), publisher, logger).Start(bgCtx)

	bgDone := make(chan struct{})
	go func() {
		a.Run(bgCtx, logger)
		close(bgDone)
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "rules_level_cap", catalog.Rules.LevelCap)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	a.Hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	// Final snapshots and tap flush
	cancelBg()
	select {
	case <-bgDone:
	case <-shutdownCtx.Done():
		logger.Warn("background loops did not stop in time")
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info("server stopped gracefully")
	return nil
}

// localRelay delivers outbox events straight to the notifier when Kafka is off.
func localRelay(pool repository.Pool, c *cache.Cache, logger *slog.Logger) infra.EventPublisher {
	base := adapter.NewBase(pool, c, logger)
	notifier := service.NewEventNotifier(adapter.NewNotificationAdapter(base, repository.NewNotificationRepository()), logger)

	return infra.PublisherFunc(func(ctx context.Context, _ string, _, value []byte) error {
		var env infra.OutboxEnvelope
		if err := json.Unmarshal(value, &env); err != nil {
			logger.Warn("undecodable outbox envelope", "error", err)
			return nil
		}
		err := notifier.Handle(ctx, env.EventType, env.Payload)
		if domain.HasCode(err, domain.CodeValidation) {
			logger.Warn("outbox event skipped", "event_id", env.EventID, "error", err)
			return nil
		}
		return err
	})
}
