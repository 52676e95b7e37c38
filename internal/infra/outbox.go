package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

// EventPublisher is the transport outbox events are relayed to.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, topic string, key, value []byte) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, key, value []byte) error {
	return f(ctx, topic, key, value)
}

// OutboxEnvelope is the Kafka message body for an outbox event.
type OutboxEnvelope struct {
	EventID       string               `json:"event_id"`
	AggregateType domain.AggregateType `json:"aggregate_type"`
	AggregateID   string               `json:"aggregate_id"`
	EventType     domain.EventType     `json:"event_type"`
	Payload       json.RawMessage      `json:"payload"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// OutboxPoller polls the event_outbox table and publishes events to Kafka.
type OutboxPoller struct {
	db        repository.DBTX
	outbox    repository.OutboxRepository
	producer  EventPublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(db repository.DBTX, outbox repository.OutboxRepository, producer EventPublisher, logger *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		db:        db,
		outbox:    outbox,
		producer:  producer,
		logger:    logger,
		interval:  500 * time.Millisecond,
		batchSize: 100,
	}
}

// Start begins polling in a goroutine. Stops when ctx is cancelled.
func (p *OutboxPoller) Start(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("outbox poller stopped")
				return
			case <-ticker.C:
				if _, err := p.Poll(ctx); err != nil {
					p.logger.Error("outbox poll error", "error", err)
				}
			}
		}
	}()
}

// Poll relays one batch and returns how many events were published. Events are
// published in id order and the batch stops at the first failure, so a topic never
// sees a later event before an earlier one.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	events, err := p.outbox.FetchUnpublished(ctx, p.db, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	for _, e := range events {
		msg, err := json.Marshal(OutboxEnvelope{
			EventID:       e.EventID.String(),
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			EventType:     e.EventType,
			Payload:       e.Payload,
			OccurredAt:    e.OccurredAt,
		})
		if err != nil {
			p.logger.Error("outbox marshal failed", "event_id", e.EventID, "error", err)
			break
		}

		key := e.PartitionKey
		if key == "" {
			key = e.AggregateID
		}
		if err := p.producer.Publish(ctx, e.Topic(), []byte(key), msg); err != nil {
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "topic", e.Topic(), "error", err)
			break
		}
		published = append(published, e.ID)
	}

	if err := p.outbox.MarkPublished(ctx, p.db, published); err != nil {
		return 0, err
	}

	p.logger.Debug("outbox poll complete", "published", len(published), "fetched", len(events))
	return len(published), nil
}
