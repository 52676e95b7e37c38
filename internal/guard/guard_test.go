package guard

import (
	"context"
	"testing"
	"time"

	"github.com/pawtap/server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func TestRateLimiter_CareCooldown(t *testing.T) {
	clock := newStepClock()
	rl := NewRateLimiter(1, time.Minute)
	rl.now = clock.Now
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "feed:u1").Allowed)
	assert.True(t, rl.Check(ctx, "play:u1").Allowed, "play has its own cooldown")

	clock.t = clock.t.Add(20 * time.Second)
	res := rl.Check(ctx, "feed:u1")
	assert.False(t, res.Allowed)
	assert.Equal(t, "rate_limiter", res.Guard)
	assert.Equal(t, 40*time.Second, res.RetryAfter)
	assert.Contains(t, res.Reason, "retry in 40s")

	clock.t = clock.t.Add(41 * time.Second)
	assert.True(t, rl.Check(ctx, "feed:u1").Allowed)
}

func TestRateLimiter_LoginWindow(t *testing.T) {
	clock := newStepClock()
	rl := NewRateLimiter(3, time.Minute)
	rl.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Check(ctx, "login:1.2.3.4").Allowed, "attempt %d", i+1)
		clock.t = clock.t.Add(10 * time.Second)
	}
	assert.False(t, rl.Check(ctx, "login:1.2.3.4").Allowed)
	assert.True(t, rl.Check(ctx, "login:5.6.7.8").Allowed)

	// The first hit slides out after a minute.
	clock.t = clock.t.Add(31 * time.Second)
	assert.True(t, rl.Check(ctx, "login:1.2.3.4").Allowed)
}

func TestRateLimiter_Sweep(t *testing.T) {
	clock := newStepClock()
	rl := NewRateLimiter(1, time.Minute)
	rl.now = clock.Now
	ctx := context.Background()

	rl.Check(ctx, "feed:a")
	clock.t = clock.t.Add(30 * time.Second)
	rl.Check(ctx, "feed:b")
	clock.t = clock.t.Add(45 * time.Second)

	assert.Equal(t, 1, rl.Sweep())
	assert.Equal(t, 0, rl.Sweep())
	assert.False(t, rl.Check(ctx, "feed:b").Allowed)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("lifetime_taps", 2, 5*time.Second)
	assert.Equal(t, CircuitClosed, cb.State())
	require.NoError(t, cb.Allow())

	cb.Failure()
	cb.Success()
	cb.Failure()
	assert.NoError(t, cb.Allow(), "a success in between resets the count")

	cb.Failure()
	assert.Equal(t, CircuitOpen, cb.State())
	err := cb.Allow()
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeUnavailable))
	assert.Contains(t, err.Error(), "lifetime_taps")
}

func TestCircuitBreaker_Probe(t *testing.T) {
	tests := []struct {
		name  string
		probe func(cb *CircuitBreaker)
		want  CircuitState
	}{
		{"successful probe closes", (*CircuitBreaker).Success, CircuitClosed},
		{"failed probe reopens", (*CircuitBreaker).Failure, CircuitOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newStepClock()
			cb := NewCircuitBreaker("lifetime_taps", 3, 5*time.Second)
			cb.now = clock.Now
			for i := 0; i < 3; i++ {
				cb.Failure()
			}
			assert.Error(t, cb.Allow())

			clock.t = clock.t.Add(6 * time.Second)
			require.NoError(t, cb.Allow(), "first call after the timeout is the probe")
			assert.Equal(t, CircuitHalfOpen, cb.State())
			assert.Error(t, cb.Allow(), "one probe at a time")

			tt.probe(cb)
			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestIdempotencyGuard_BlocksDuplicate(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	assert.True(t, ig.Check(ctx, "purchase-1").Allowed)
	result := ig.Check(ctx, "purchase-1")
	assert.False(t, result.Allowed)
	assert.Equal(t, "idempotency", result.Guard)
}

func TestIdempotencyGuard_EmptyKeyAllowed(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	assert.True(t, ig.Check(ctx, "").Allowed)
	assert.True(t, ig.Check(ctx, "").Allowed)
}

func TestIdempotencyGuard_RemoveAllowsRetry(t *testing.T) {
	ig := NewIdempotencyGuard(time.Hour)
	ctx := context.Background()

	ig.Check(ctx, "purchase-1")
	ig.Remove("purchase-1")
	assert.True(t, ig.Check(ctx, "purchase-1").Allowed)
}

func TestIdempotencyGuard_KeysExpire(t *testing.T) {
	clock := newStepClock()
	ig := NewIdempotencyGuard(time.Minute)
	ig.now = clock.Now
	ctx := context.Background()

	ig.Check(ctx, "purchase-1")
	clock.t = clock.t.Add(2 * time.Minute)
	assert.True(t, ig.Check(ctx, "purchase-1").Allowed)
}

func TestLockout(t *testing.T) {
	clock := newStepClock()
	l := NewLockout()
	l.now = clock.Now

	for i := 0; i < MaxAttempts-1; i++ {
		l.RecordAttempt("ops@pawtap.dev", false)
	}
	assert.NoError(t, l.CheckLocked("ops@pawtap.dev"))

	l.RecordAttempt("ops@pawtap.dev", false)
	err := l.CheckLocked("ops@pawtap.dev")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeRateLimited))

	clock.t = clock.t.Add(LockoutWindow + time.Second)
	assert.NoError(t, l.CheckLocked("ops@pawtap.dev"))
}

func TestLockout_SuccessClears(t *testing.T) {
	l := NewLockout()
	for i := 0; i < MaxAttempts-1; i++ {
		l.RecordAttempt("a@b.co", false)
	}
	l.RecordAttempt("a@b.co", true)
	l.RecordAttempt("a@b.co", false)
	assert.NoError(t, l.CheckLocked("a@b.co"))
}

func TestTapThrottle(t *testing.T) {
	clock := newStepClock()
	th := NewTapThrottle(10, 3, time.Minute)
	th.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, th.Check(ctx, "u1").Allowed)
	}
	res := th.Check(ctx, "u1")
	assert.False(t, res.Allowed)
	assert.Equal(t, "tap_throttle", res.Guard)
	assert.True(t, th.Check(ctx, "u2").Allowed, "buckets are per user")

	clock.t = clock.t.Add(200 * time.Millisecond)
	assert.True(t, th.Check(ctx, "u1").Allowed, "tokens refill over time")

	clock.t = clock.t.Add(2 * time.Minute)
	assert.Equal(t, 2, th.Sweep())
}
