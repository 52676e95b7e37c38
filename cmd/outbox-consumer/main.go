package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pawtap/server/internal/adapter"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/infra"
	"github.com/pawtap/server/internal/repository"
	"github.com/pawtap/server/internal/service"
	"github.com/segmentio/kafka-go"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.KafkaEnabled {
		return errors.New("KAFKA_ENABLED is false; the api relays events in-process instead")
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-consumer connected to postgres")

	// Notifications invalidate the inbox cache the api instances read.
	var backend cache.Backend = cache.NewMemoryBackend()
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		backend = cache.NewRedisBackend(client)
	}
	c := cache.New(backend, logger, cache.WithPrefix(cfg.CachePrefix))

	base := adapter.NewBase(pool, c, logger)
	notifier := service.NewEventNotifier(adapter.NewNotificationAdapter(base, repository.NewNotificationRepository()), logger)

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, notifier.Topics(), cfg.KafkaGroupID, true, logger)
	defer consumer.Close()

	logger.Info("outbox-consumer starting", "topics", notifier.Topics())
	for {
		msg, err := consumer.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("outbox-consumer shutting down")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := handle(ctx, notifier, msg, logger); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := consumer.CommitMessages(ctx, msg); err != nil {
			logger.Error("commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// handle retries transient failures with backoff until the event is stored or ctx ends.
// Malformed events are logged and skipped.
func handle(ctx context.Context, notifier *service.EventNotifier, msg kafka.Message, logger *slog.Logger) error {
	var env infra.OutboxEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		logger.Warn("undecodable message skipped", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}

	backoff := 500 * time.Millisecond
	for {
		err := notifier.Handle(ctx, env.EventType, env.Payload)
		switch {
		case err == nil:
			return nil
		case domain.HasCode(err, domain.CodeValidation):
			logger.Warn("malformed event skipped", "event_id", env.EventID, "error", err)
			return nil
		}

		logger.Error("notification failed, retrying", "event_id", env.EventID, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
