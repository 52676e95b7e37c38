package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/guard"
	"github.com/pawtap/server/internal/repository"
)

var errRemote = domain.ErrUnavailable("remote", errors.New("connection refused"))

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChars struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]domain.Character
	loadErr  error
	saveErr  error
	claimErr error
	saves    []int64
	credits  map[uuid.UUID]int64
	evolved  []int
}

func newFakeChars() *fakeChars {
	return &fakeChars{rows: map[uuid.UUID]domain.Character{}, credits: map[uuid.UUID]int64{}}
}

func (f *fakeChars) put(c domain.Character) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[c.UserID] = c
}

func (f *fakeChars) get(id uuid.UUID) domain.Character {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeChars) Load(_ context.Context, userID uuid.UUID, _ bool) (domain.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.Character{}, f.loadErr
	}
	c, ok := f.rows[userID]
	if !ok {
		c = domain.Character{UserID: userID, State: game.DefaultRules().NewPlayerState("", domain.CharacterCat)}
		f.rows[userID] = c
	}
	return c, nil
}

// Save keeps credits nobody has claimed on top of the snapshot coins.
func (f *fakeChars) Save(_ context.Context, userID uuid.UUID, state domain.PlayerState, revision int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return false, f.saveErr
	}
	f.saves = append(f.saves, revision)
	if revision <= f.rows[userID].Revision {
		return false, nil
	}
	state.Coins += f.credits[userID]
	f.rows[userID] = domain.Character{UserID: userID, State: state, Revision: revision}
	return true, nil
}

// Credit records pending coins, as a credit from another instance does.
func (f *fakeChars) Credit(_ context.Context, userID uuid.UUID, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits[userID] += amount
	return nil
}

func (f *fakeChars) ClaimCredits(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return 0, f.claimErr
	}
	n := f.credits[userID]
	delete(f.credits, userID)
	return n, nil
}

func (f *fakeChars) RecordEvolution(_ context.Context, _ uuid.UUID, _ domain.CharacterType, level int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evolved = append(f.evolved, level)
	return nil
}

func (f *fakeChars) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type fakeLogins struct {
	mu   sync.Mutex
	prev map[uuid.UUID]time.Time
}

func (f *fakeLogins) TouchLogin(_ context.Context, id uuid.UUID) (domain.LoginTouch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var touch domain.LoginTouch
	if p, ok := f.prev[id]; ok {
		touch.PreviousLogin = &p
	}
	return touch, nil
}

type published struct {
	playerID string
	event    string
	data     interface{}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) PublishToPlayer(playerID, event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{playerID, event, data})
}

func (f *fakePublisher) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.event
	}
	return out
}

type fakeCatalog struct {
	items     map[uuid.UUID]domain.StoreItem
	recordErr error
	purchases []domain.Purchase
}

func (f *fakeCatalog) Items(context.Context, bool) ([]domain.StoreItem, error) {
	out := []domain.StoreItem{}
	for _, it := range f.items {
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeCatalog) Item(_ context.Context, id uuid.UUID) (domain.StoreItem, error) {
	it, ok := f.items[id]
	if !ok {
		return domain.StoreItem{}, domain.ErrNotFound("item", id.String())
	}
	return it, nil
}

func (f *fakeCatalog) RecordPurchase(_ context.Context, p *domain.Purchase) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	p.ID = uuid.New()
	f.purchases = append(f.purchases, *p)
	return nil
}

type fakeBonuses struct {
	claimed map[uuid.UUID]bool
	streak  int
}

func (f *fakeBonuses) Status(_ context.Context, userID uuid.UUID, _ bool) (domain.DailyBonusStatus, error) {
	return domain.DailyBonusStatus{Available: !f.claimed[userID], NextAmount: domain.DailyBonusAmount(f.streak + 1)}, nil
}

func (f *fakeBonuses) Claim(_ context.Context, userID uuid.UUID) (domain.DailyBonus, error) {
	if f.claimed[userID] {
		return domain.DailyBonus{}, domain.ErrAlreadyClaimed("daily bonus")
	}
	f.claimed[userID] = true
	f.streak++
	return domain.DailyBonus{UserID: userID, Streak: f.streak, LastAmount: domain.DailyBonusAmount(f.streak)}, nil
}

type fakeReferralBook struct {
	owner map[string]uuid.UUID
	used  map[uuid.UUID]bool
}

func (f *fakeReferralBook) Summary(_ context.Context, user domain.User, _ bool) (domain.ReferralSummary, error) {
	return domain.ReferralSummary{WasInvite: user.ReferredBy != nil}, nil
}

func (f *fakeReferralBook) Generate(_ context.Context, userID uuid.UUID) (domain.ReferralLink, error) {
	for code, id := range f.owner {
		if id == userID {
			return domain.ReferralLink{Code: code, UserID: userID}, nil
		}
	}
	code := domain.NewReferralCode()
	f.owner[code] = userID
	return domain.ReferralLink{Code: code, UserID: userID}, nil
}

func (f *fakeReferralBook) Use(_ context.Context, inviteeID uuid.UUID, code string) (domain.ReferralUse, error) {
	referrer, ok := f.owner[code]
	if !ok {
		return domain.ReferralUse{}, domain.ErrNotFound("referral code", code)
	}
	if f.used[inviteeID] {
		return domain.ReferralUse{}, domain.ErrAlreadyClaimed("referral")
	}
	f.used[inviteeID] = true
	return domain.ReferralUse{
		Code:           code,
		ReferrerID:     referrer,
		InviteeID:      inviteeID,
		InviteeReward:  domain.ReferralInviteeReward,
		ReferrerReward: domain.ReferralReferrerReward,
	}, nil
}

type fakeTournamentBook struct {
	byID    map[uuid.UUID]domain.Tournament
	joinErr error
	joined  []uuid.UUID
}

func (f *fakeTournamentBook) Active(context.Context, bool) ([]domain.Tournament, error) {
	return []domain.Tournament{}, nil
}

func (f *fakeTournamentBook) Get(_ context.Context, id uuid.UUID) (domain.Tournament, error) {
	t, ok := f.byID[id]
	if !ok {
		return domain.Tournament{}, domain.ErrNotFound("tournament", id.String())
	}
	return t, nil
}

func (f *fakeTournamentBook) Join(_ context.Context, _, userID uuid.UUID) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = append(f.joined, userID)
	return nil
}

func (f *fakeTournamentBook) Leaderboard(context.Context, uuid.UUID, bool) ([]domain.TournamentEntry, error) {
	return []domain.TournamentEntry{}, nil
}

type fakeDirectory struct {
	users   map[uuid.UUID]domain.User
	actions []string
}

func (f *fakeDirectory) Get(_ context.Context, id uuid.UUID, _ bool) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound("user", id.String())
	}
	return u, nil
}

func (f *fakeDirectory) Rank(_ context.Context, id uuid.UUID, _ bool) (domain.LeaderboardEntry, error) {
	return domain.LeaderboardEntry{UserID: id}, nil
}

func (f *fakeDirectory) Leaderboard(context.Context, int, bool) ([]domain.LeaderboardEntry, error) {
	return []domain.LeaderboardEntry{}, nil
}

func (f *fakeDirectory) TrackAction(_ context.Context, _ uuid.UUID, action string, _ any) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakePhraseBook struct {
	asked []domain.CharacterType
}

func (f *fakePhraseBook) List(_ context.Context, ct domain.CharacterType, _ string, _ bool) ([]domain.Phrase, error) {
	f.asked = append(f.asked, ct)
	return []domain.Phrase{{CharacterType: ct, Language: "en", Text: "hi"}}, nil
}

type fakeInbox struct{}

func (fakeInbox) List(context.Context, uuid.UUID, bool) ([]domain.NotificationItem, error) {
	return []domain.NotificationItem{}, nil
}

func (fakeInbox) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type fakeAdmins struct {
	byEmail map[string]*domain.AdminUser
}

func (f *fakeAdmins) FindByEmail(_ context.Context, _ repository.DBTX, email string) (*domain.AdminUser, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAdmins) Create(_ context.Context, _ repository.DBTX, a *domain.AdminUser) error {
	cp := *a
	f.byEmail[a.Email] = &cp
	return nil
}

// sessionFixture builds a SessionManager over fakes and closes it when the test ends.
type sessionFixture struct {
	chars  *fakeChars
	logins *fakeLogins
	pub    *fakePublisher
	mgr    *SessionManager
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		chars:  newFakeChars(),
		logins: &fakeLogins{prev: map[uuid.UUID]time.Time{}},
		pub:    &fakePublisher{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cfg := SessionConfig{Rules: game.DefaultRules(), IdleTimeout: 10 * time.Minute, SyncInterval: time.Minute}
	f.mgr = NewSessionManager(ctx, cfg, f.chars, f.logins, nil, f.pub, discardLogger())
	t.Cleanup(func() {
		_ = f.mgr.CloseAll(context.Background())
		cancel()
	})
	return f
}

type gameFixture struct {
	*sessionFixture
	catalog     *fakeCatalog
	bonuses     *fakeBonuses
	referrals   *fakeReferralBook
	tournaments *fakeTournamentBook
	users       *fakeDirectory
	phrases     *fakePhraseBook
	svc         *GameService
}

func newGameFixture(t *testing.T) *gameFixture {
	t.Helper()
	f := &gameFixture{
		sessionFixture: newSessionFixture(t),
		catalog:        &fakeCatalog{items: map[uuid.UUID]domain.StoreItem{}},
		bonuses:        &fakeBonuses{claimed: map[uuid.UUID]bool{}},
		referrals:      &fakeReferralBook{owner: map[string]uuid.UUID{}, used: map[uuid.UUID]bool{}},
		tournaments:    &fakeTournamentBook{byID: map[uuid.UUID]domain.Tournament{}},
		users:          &fakeDirectory{users: map[uuid.UUID]domain.User{}},
		phrases:        &fakePhraseBook{},
	}
	f.svc = NewGameService(GameDeps{
		Sessions:      f.mgr,
		Items:         f.catalog,
		Bonuses:       f.bonuses,
		Referrals:     f.referrals,
		Tournaments:   f.tournaments,
		Users:         f.users,
		Phrases:       f.phrases,
		Notifications: fakeInbox{},
		TapThrottle:   guard.NewTapThrottle(20, 20, time.Minute),
		CareLimiter:   guard.NewRateLimiter(1, time.Minute),
		Idempotency:   guard.NewIdempotencyGuard(time.Hour),
	}, discardLogger())
	return f
}

// withCoins stores a character for a fresh user holding coins.
func (f *sessionFixture) withCoins(coins int64) uuid.UUID {
	id := uuid.New()
	s := game.DefaultRules().NewPlayerState(id.String(), domain.CharacterDog)
	s.Coins = coins
	f.chars.put(domain.Character{UserID: id, State: s, Revision: 3, UpdatedAt: time.Now()})
	return id
}
