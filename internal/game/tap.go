package game

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pawtap/server/internal/domain"
)

// VisualState is the character animation state shown by the client.
type VisualState string

const (
	VisualIdle          VisualState = "idle"
	VisualTransitioning VisualState = "transitioning"
	VisualEvolved       VisualState = "evolved"
)

// TapRecorder receives accepted taps for the lifetime counter. RecordTaps must not block.
type TapRecorder interface {
	RecordTaps(userID string, n int)
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// TapResult describes the outcome of one tap.
type TapResult struct {
	Points     int                `json:"points"`
	Multiplier float64            `json:"multiplier"`
	State      domain.PlayerState `json:"state"`
	Visual     VisualState        `json:"visual"`
	Evolving   bool               `json:"evolving"`
}

// TapLoop turns taps into store dispatches and drives evolution.
type TapLoop struct {
	mu        sync.Mutex
	store     *Store
	combo     *Combo
	recorder  TapRecorder
	logger    *slog.Logger
	now       func() time.Time
	after     AfterFunc
	onEvolved func(domain.PlayerState)

	visual      VisualState
	cancelEvolv func() bool
	taps        int
	closed      bool
}

// TapOption customizes a TapLoop.
type TapOption func(*TapLoop)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TapOption {
	return func(l *TapLoop) { l.now = now }
}

// WithScheduler overrides time.AfterFunc for the evolution delay.
func WithScheduler(after AfterFunc) TapOption {
	return func(l *TapLoop) { l.after = after }
}

// WithEvolvedHook is called with the new state after each evolution.
func WithEvolvedHook(fn func(domain.PlayerState)) TapOption {
	return func(l *TapLoop) { l.onEvolved = fn }
}

// NewTapLoop creates a tap loop over store. recorder may be nil.
func NewTapLoop(store *Store, recorder TapRecorder, logger *slog.Logger, opts ...TapOption) *TapLoop {
	l := &TapLoop{
		store:    store,
		combo:    NewCombo(store.Rules().Combo),
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		after:    timeAfterFunc,
		visual:   VisualIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tap handles one user tap.
func (l *TapLoop) Tap() (TapResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.store.State()
	if state.Energy.Current <= 0 {
		return TapResult{State: state, Visual: l.visual, Multiplier: l.combo.Multiplier()}, domain.ErrEnergyEmpty()
	}

	mult := l.combo.Hit(l.now())
	points := Points(mult)

	next, err := l.store.Dispatch(Tap{Points: points})
	if err != nil {
		return TapResult{State: next, Visual: l.visual, Multiplier: mult}, err
	}
	l.taps++

	if l.recorder != nil && next.UserID != "" {
		l.recorder.RecordTaps(next.UserID, 1)
	}

	if l.shouldEvolve(next) {
		l.startEvolution()
	}

	return TapResult{
		Points:     points,
		Multiplier: mult,
		State:      next,
		Visual:     l.visual,
		Evolving:   l.visual == VisualTransitioning,
	}, nil
}

// Visual returns the current animation state.
func (l *TapLoop) Visual() VisualState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visual
}

// Taps returns the taps accepted since the loop was created.
func (l *TapLoop) Taps() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.taps
}

// Resume schedules the evolution for a state that already reached the threshold, as a
// snapshot taken during the evolution delay does. It reports whether one was scheduled.
func (l *TapLoop) Resume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || !l.shouldEvolve(l.store.State()) {
		return false
	}
	l.startEvolution()
	return true
}

// Close cancels a pending evolution.
func (l *TapLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.cancelEvolv != nil {
		l.cancelEvolv()
		l.cancelEvolv = nil
	}
}

func (l *TapLoop) shouldEvolve(s domain.PlayerState) bool {
	if l.visual == VisualTransitioning {
		return false
	}
	if s.Level.Current >= l.store.Rules().LevelCap {
		return false
	}
	return s.Progress.Required > 0 && s.Progress.Current >= s.Progress.Required
}

// startEvolution must be called with l.mu held.
func (l *TapLoop) startEvolution() {
	l.visual = VisualTransitioning
	l.cancelEvolv = l.after(l.store.Rules().EvolutionDelay, l.completeEvolution)
}

func (l *TapLoop) completeEvolution() {
	l.mu.Lock()
	l.cancelEvolv = nil
	if l.closed {
		l.mu.Unlock()
		return
	}
	next, err := l.store.Dispatch(Evolve{})
	if err != nil {
		l.visual = VisualIdle
		l.mu.Unlock()
		l.logger.Warn("evolution rejected", "user_id", next.UserID, "error", err)
		return
	}
	l.visual = VisualEvolved
	hook := l.onEvolved
	l.mu.Unlock()

	l.logger.Info("character evolved", "user_id", next.UserID, "level", next.Level.Current)
	if hook != nil {
		hook(next)
	}
}
