package guard

import (
	"sync"
	"time"

	"github.com/pawtap/server/internal/domain"
)

const (
	MaxAttempts   = 5
	LockoutWindow = 15 * time.Minute
)

// Lockout counts failed admin logins per email and locks the account once
// MaxAttempts failures fall inside LockoutWindow.
type Lockout struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

// NewLockout creates an empty lockout tracker.
func NewLockout() *Lockout {
	return &Lockout{failures: make(map[string][]time.Time), now: time.Now}
}

// RecordAttempt notes a login outcome. A success clears the history.
func (l *Lockout) RecordAttempt(email string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if success {
		delete(l.failures, email)
		return
	}
	l.failures[email] = append(l.recent(email), l.now())
}

// CheckLocked returns a rate-limit error while the account is locked.
func (l *Lockout) CheckLocked(email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	recent := l.recent(email)
	l.failures[email] = recent
	if len(recent) >= MaxAttempts {
		return domain.ErrRateLimited("too many failed login attempts, try again later")
	}
	return nil
}

// recent must be called with l.mu held.
func (l *Lockout) recent(email string) []time.Time {
	cutoff := l.now().Add(-LockoutWindow)
	entries := l.failures[email]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
