package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
)

// CharacterStore persists character snapshots.
type CharacterStore interface {
	Load(ctx context.Context, userID uuid.UUID, force bool) (domain.Character, error)
	Save(ctx context.Context, userID uuid.UUID, state domain.PlayerState, revision int64) (bool, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64) error
	ClaimCredits(ctx context.Context, userID uuid.UUID) (int64, error)
	RecordEvolution(ctx context.Context, userID uuid.UUID, characterType domain.CharacterType, level int) error
}

// LoginTracker stamps logins.
type LoginTracker interface {
	TouchLogin(ctx context.Context, id uuid.UUID) (domain.LoginTouch, error)
}

// Publisher pushes realtime events to a player's connections.
type Publisher interface {
	PublishToPlayer(playerID string, event string, data interface{})
}

// Realtime event names.
const (
	EventState   = "state"
	EventEvolved = "evolved"
	EventNotice  = "notification"
)

// StatePush is the payload of a state event.
type StatePush struct {
	State    domain.PlayerState `json:"state"`
	Revision int64              `json:"revision"`
	Action   string             `json:"action"`
}

// Session is one player's live game: the store plus the loops that drive it.
type Session struct {
	UserID uuid.UUID
	Store  *game.Store
	Taps   *game.TapLoop
	Regen  *game.Regenerator

	mu       sync.Mutex
	lastSeen time.Time
	savedRev int64
	day      string // UTC day DailyTasks refers to
	unsub    func()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// dirty reports whether the store moved past the last persisted revision.
func (s *Session) dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Store.Revision() > s.savedRev
}

func (s *Session) stop() {
	s.Taps.Close()
	s.Regen.Stop()
	if s.unsub != nil {
		s.unsub()
	}
}

// SessionConfig tunes the SessionManager.
type SessionConfig struct {
	Rules        game.Rules
	IdleTimeout  time.Duration
	SyncInterval time.Duration
}

// SessionManager owns the live sessions of this instance.
type SessionManager struct {
	cfg      SessionConfig
	chars    CharacterStore
	logins   LoginTracker
	recorder game.TapRecorder
	pub      Publisher
	logger   *slog.Logger
	now      func() time.Time

	// regenCtx outlives requests; regenerators stop with it or with their session.
	regenCtx context.Context

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewSessionManager creates a SessionManager. recorder and pub may be nil.
func NewSessionManager(
	ctx context.Context,
	cfg SessionConfig,
	chars CharacterStore,
	logins LoginTracker,
	recorder game.TapRecorder,
	pub Publisher,
	logger *slog.Logger,
) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		chars:    chars,
		logins:   logins,
		recorder: recorder,
		pub:      pub,
		logger:   logger,
		now:      time.Now,
		regenCtx: ctx,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open returns the user's live session, starting one from the stored character when
// none exists. A failed character load is returned instead of starting from a default
// state, which would be overwritten by the stored row on the next login.
func (m *SessionManager) Open(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if s, ok := m.Get(userID); ok {
		m.rollDay(s)
		return s, nil
	}

	c, err := m.chars.Load(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	touch, err := m.logins.TouchLogin(ctx, userID)
	if err != nil {
		m.logger.Warn("touch login failed", "user_id", userID, "error", err)
	}

	s := m.newSession(userID, c, touch)

	m.mu.Lock()
	if existing, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		s.stop()
		existing.touch(m.now())
		return existing, nil
	}
	m.sessions[userID] = s
	m.mu.Unlock()

	s.Regen.Start(m.regenCtx)
	// A snapshot can be taken while an evolution was pending.
	s.Taps.Resume()
	m.claimCredits(ctx, s)
	m.logger.Info("session opened", "user_id", userID, "revision", c.Revision, "energy", s.Store.State().Energy.Current)
	return s, nil
}

func (m *SessionManager) newSession(userID uuid.UUID, c domain.Character, touch domain.LoginTouch) *Session {
	rules := m.cfg.Rules
	store := game.NewStoreAt(c.State, rules, c.Revision)
	s := &Session{UserID: userID, Store: store, lastSeen: m.now(), savedRev: c.Revision}
	if !c.UpdatedAt.IsZero() {
		s.day = utcDay(c.UpdatedAt)
	}

	if store.State().UserID == "" {
		_, _ = store.Dispatch(game.SetUserID{ID: userID.String()})
	}
	m.rollDay(s)

	// Energy regenerated while no session was running. The snapshot time is preferred
	// over the previous login because a session may have run after that login.
	since := c.UpdatedAt
	if since.IsZero() && touch.PreviousLogin != nil {
		since = *touch.PreviousLogin
	}
	if n := game.CatchUpEnergy(since, m.now(), store.State().Energy, rules.RegenInterval); n > 0 {
		if _, err := store.Dispatch(game.RegenEnergy{Amount: n}); err != nil {
			m.logger.Warn("energy catch-up rejected", "user_id", userID, "error", err)
		}
	}

	s.Taps = game.NewTapLoop(store, m.recorder, m.logger, game.WithEvolvedHook(func(next domain.PlayerState) {
		go m.evolved(s, next)
	}))
	s.Regen = game.NewRegenerator(store, rules.RegenInterval, m.logger)

	if m.pub != nil {
		id := userID.String()
		s.unsub = store.Subscribe(func(ch game.Change) {
			m.pub.PublishToPlayer(id, EventState, StatePush{State: ch.State, Revision: ch.Revision, Action: ch.Action.ActionName()})
		})
	}
	return s
}

func utcDay(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// rollDay clears DailyTasks once the UTC day has changed since they were recorded.
func (m *SessionManager) rollDay(s *Session) {
	today := utcDay(m.now())
	s.mu.Lock()
	if s.day == today {
		s.mu.Unlock()
		return
	}
	s.day = today
	s.mu.Unlock()

	if s.Store.State().DailyTasks.CompletedToday {
		if _, err := s.Store.Dispatch(game.CompleteDailyTasks{Completed: false}); err != nil {
			m.logger.Warn("daily tasks reset rejected", "user_id", s.UserID, "error", err)
		}
	}
}

// claimCredits moves coins credited while no session was live into the store.
func (m *SessionManager) claimCredits(ctx context.Context, s *Session) {
	n, err := m.chars.ClaimCredits(ctx, s.UserID)
	if err != nil {
		m.logger.Warn("claim pending credits failed", "user_id", s.UserID, "error", err)
		return
	}
	if n <= 0 {
		return
	}
	if _, err := s.Store.Dispatch(game.ClaimReward{Type: domain.RewardCoins, Amount: n}); err != nil {
		m.logger.Error("pending credit rejected", "user_id", s.UserID, "amount", n, "error", err)
		return
	}
	m.logger.Info("pending credits claimed", "user_id", s.UserID, "amount", n)
}

func (m *SessionManager) evolved(s *Session, next domain.PlayerState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.chars.RecordEvolution(ctx, s.UserID, next.CharacterType, next.Level.Current); err != nil {
		m.logger.Error("record evolution", "user_id", s.UserID, "error", err)
	}
	if err := m.save(ctx, s); err != nil {
		m.logger.Warn("snapshot after evolution failed", "user_id", s.UserID, "error", err)
	}
	if m.pub != nil {
		m.pub.PublishToPlayer(s.UserID.String(), EventEvolved, next)
	}
}

// Get returns the live session for userID and marks it as used.
func (m *SessionManager) Get(userID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	m.mu.Unlock()
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// save writes the session snapshot if it changed since the last write. A snapshot the
// database already has a newer revision for is dropped.
func (m *SessionManager) save(ctx context.Context, s *Session) error {
	state, rev := s.Store.Snapshot()

	s.mu.Lock()
	if rev <= s.savedRev {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	applied, err := m.chars.Save(ctx, s.UserID, state, rev)
	if err != nil {
		return err
	}
	if !applied {
		m.logger.Warn("snapshot superseded by newer revision", "user_id", s.UserID, "revision", rev)
	}

	s.mu.Lock()
	if rev > s.savedRev {
		s.savedRev = rev
	}
	s.mu.Unlock()
	return nil
}

// Close stops the user's session and writes its final snapshot.
func (m *SessionManager) Close(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.stop()
	if err := m.save(ctx, s); err != nil {
		return err
	}
	m.logger.Info("session closed", "user_id", userID, "taps", s.Taps.Taps())
	return nil
}

// CloseAll closes every session, collecting snapshot failures.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep closes sessions idle for longer than the idle timeout.
func (m *SessionManager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []uuid.UUID
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		if err := m.Close(ctx, id); err != nil {
			m.logger.Error("close idle session", "user_id", id, "error", err)
		}
	}
	return len(idle)
}

// SyncAll claims pending credits, rolls the daily tasks over at UTC midnight and writes
// the snapshot of every session that changed since its last write. It returns the
// number of snapshots written.
func (m *SessionManager) SyncAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	var errs []error
	saved := 0
	for _, s := range live {
		m.claimCredits(ctx, s)
		m.rollDay(s)
		if !s.dirty() {
			continue
		}
		if err := m.save(ctx, s); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

// Credit adds coins to a player. A live session receives them through its store so the
// next snapshot carries them; otherwise they are stored as pending credits that the
// next session claims.
func (m *SessionManager) Credit(ctx context.Context, userID uuid.UUID, amount int64) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	m.mu.Unlock()
	if ok {
		_, err := s.Store.Dispatch(game.ClaimReward{Type: domain.RewardCoins, Amount: amount})
		return err
	}
	return m.chars.Credit(ctx, userID, amount)
}

// Run syncs snapshots and evicts idle sessions until ctx is cancelled, then closes every
// session with a bounded final write.
func (m *SessionManager) Run(ctx context.Context) {
	m.logger.Info("session manager started", "sync_interval", m.cfg.SyncInterval, "idle_timeout", m.cfg.IdleTimeout)
	ticker := time.NewTicker(m.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := m.CloseAll(closeCtx); err != nil {
				m.logger.Error("final snapshot sync failed", "error", err)
			}
			cancel()
			m.logger.Info("session manager stopped")
			return
		case <-ticker.C:
			if n, err := m.SyncAll(ctx); err != nil {
				m.logger.Warn("snapshot sync incomplete", "saved", n, "error", err)
			}
			if n := m.Sweep(ctx); n > 0 {
				m.logger.Info("idle sessions closed", "count", n)
			}
		}
	}
}
