package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/guard"
)

// TapSink persists a batch of taps for one user.
type TapSink interface {
	FlushTaps(ctx context.Context, userID uuid.UUID, n int64) error
}

// TapBatcher collects accepted taps in memory and writes per-user totals on an
// interval. Totals whose write fails are put back and retried on the next flush.
type TapBatcher struct {
	sink     TapSink
	breaker  *guard.CircuitBreaker
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	pending map[string]int64
	done    chan struct{}
}

// NewTapBatcher creates a batcher flushing every interval.
func NewTapBatcher(sink TapSink, breaker *guard.CircuitBreaker, logger *slog.Logger, interval time.Duration) *TapBatcher {
	return &TapBatcher{
		sink:     sink,
		breaker:  breaker,
		logger:   logger,
		interval: interval,
		pending:  make(map[string]int64),
		done:     make(chan struct{}),
	}
}

// RecordTaps queues n taps for userID. It never blocks on I/O.
func (b *TapBatcher) RecordTaps(userID string, n int) {
	if n <= 0 || userID == "" {
		return
	}
	b.mu.Lock()
	b.pending[userID] += int64(n)
	b.mu.Unlock()
}

// Pending returns the queued count for userID.
func (b *TapBatcher) Pending(userID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[userID]
}

// Start flushes on every tick until ctx is cancelled, then flushes once more.
func (b *TapBatcher) Start(ctx context.Context) {
	b.logger.Info("tap batcher started", "interval", b.interval)

	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if _, err := b.Flush(flushCtx); err != nil {
					b.logger.Error("final tap flush failed", "error", err)
				}
				cancel()
				b.logger.Info("tap batcher stopped")
				return
			case <-ticker.C:
				if _, err := b.Flush(ctx); err != nil {
					b.logger.Warn("tap flush incomplete", "error", err)
				}
			}
		}
	}()
}

// Done is closed after the final flush that follows cancellation.
func (b *TapBatcher) Done() <-chan struct{} {
	return b.done
}

// Flush writes every pending total and returns how many users were written.
func (b *TapBatcher) Flush(ctx context.Context) (int, error) {
	b.mu.Lock()
	batch := b.pending
	b.pending = make(map[string]int64, len(batch))
	b.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	var errs []error
	flushed := 0
	for userID, n := range batch {
		// Parsed first: a half-open breaker hands out a single probe, which must end
		// in Success or Failure.
		id, err := uuid.Parse(userID)
		if err != nil {
			b.logger.Error("dropping taps for invalid user id", "user_id", userID, "taps", n)
			continue
		}

		if err := b.breaker.Allow(); err != nil {
			b.requeue(userID, n)
			errs = append(errs, err)
			continue
		}

		if err := b.sink.FlushTaps(ctx, id, n); err != nil {
			b.breaker.Failure()
			b.requeue(userID, n)
			errs = append(errs, fmt.Errorf("flush %s: %w", userID, err))
			continue
		}
		b.breaker.Success()
		flushed++
	}

	if len(errs) > 0 {
		b.logger.Warn("taps re-queued", "failed", len(errs), "flushed", flushed)
	}
	return flushed, errors.Join(errs...)
}

func (b *TapBatcher) requeue(userID string, n int64) {
	b.mu.Lock()
	b.pending[userID] += n
	b.mu.Unlock()
}
