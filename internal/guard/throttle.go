package guard

import (
	"context"
	"sync"
	"time"

	"github.com/pawtap/server/internal/domain"
	"golang.org/x/time/rate"
)

// TapThrottle is a per-user token bucket that caps tap requests to what a human
// thumb can produce.
type TapThrottle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTapThrottle allows perSecond taps with the given burst. Buckets idle longer than
// idle are dropped on the next sweep.
func NewTapThrottle(perSecond float64, burst int, idle time.Duration) *TapThrottle {
	return &TapThrottle{
		limiters: make(map[string]*throttleEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

// Check consumes one token for userID.
func (t *TapThrottle) Check(_ context.Context, userID string) domain.GuardResult {
	t.mu.Lock()
	now := t.now()
	e, ok := t.limiters[userID]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[userID] = e
	}
	e.lastSeen = now
	t.mu.Unlock()

	if !e.limiter.AllowN(now, 1) {
		return domain.GuardResult{Allowed: false, Reason: "tapping too fast", Guard: "tap_throttle"}
	}
	return domain.GuardResult{Allowed: true}
}

// Sweep drops idle buckets and returns how many were removed.
func (t *TapThrottle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.idle)
	removed := 0
	for id, e := range t.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(t.limiters, id)
			removed++
		}
	}
	return removed
}
