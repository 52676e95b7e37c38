package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pawtap/server/internal/domain"
)

// Regenerator dispatches RegenEnergy on a fixed interval while a session is open.
type Regenerator struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegenerator creates a regenerator for store.
func NewRegenerator(store *Store, interval time.Duration, logger *slog.Logger) *Regenerator {
	return &Regenerator{store: store, interval: interval, logger: logger}
}

// Start begins ticking in a goroutine. It stops when ctx is cancelled or Stop is called.
// Calling Start on a running regenerator is a no-op.
func (r *Regenerator) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Tick(); err != nil {
					r.logger.Warn("energy regen rejected", "error", err)
				}
			}
		}
	}(r.done)
}

// Stop cancels the ticker and waits for the goroutine to exit.
func (r *Regenerator) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Tick performs one regeneration step. A full bar is left alone.
func (r *Regenerator) Tick() (domain.PlayerState, error) {
	state := r.store.State()
	if state.Energy.Current >= state.Energy.Max || state.Energy.RegenRate <= 0 {
		return state, nil
	}
	return r.store.Dispatch(RegenEnergy{Amount: state.Energy.RegenRate})
}

// CatchUpEnergy estimates the energy restored while no session was open: one RegenRate
// per whole interval elapsed since lastLogin, bounded by the room left below Max.
func CatchUpEnergy(lastLogin, now time.Time, e domain.Energy, interval time.Duration) int {
	if lastLogin.IsZero() || interval <= 0 || !now.After(lastLogin) {
		return 0
	}
	ticks := int64(now.Sub(lastLogin) / interval)
	room := int64(e.Max - e.Current)
	if room <= 0 {
		return 0
	}
	return int(min(room, ticks*int64(e.RegenRate)))
}
