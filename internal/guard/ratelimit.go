package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pawtap/server/internal/domain"
)

// RateLimiter allows limit hits per key inside a sliding window. It backs the feed/play
// cooldown (limit 1) and the per-IP login limit.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a rate limiter with the given limit per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Check records a hit for key unless the window is full. A blocked result carries the
// wait until the oldest hit leaves the window.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	live := rl.prune(key, now)
	if len(live) >= rl.limit {
		wait := live[0].Add(rl.window).Sub(now)
		return domain.GuardResult{
			Allowed:    false,
			Reason:     fmt.Sprintf("limit of %d per %s reached, retry in %s", rl.limit, rl.window, wait.Round(time.Second)),
			Guard:      "rate_limiter",
			RetryAfter: wait,
		}
	}
	rl.hits[key] = append(live, now)
	return domain.GuardResult{Allowed: true}
}

// prune drops hits that left the window. rl.mu must be held.
func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	entries := rl.hits[key]
	live := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		delete(rl.hits, key)
		return nil
	}
	rl.hits[key] = live
	return live
}

// Sweep forgets keys whose hits have all expired and returns how many were dropped.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	before := len(rl.hits)
	for key := range rl.hits {
		rl.prune(key, now)
	}
	return before - len(rl.hits)
}
