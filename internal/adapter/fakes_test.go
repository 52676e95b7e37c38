package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

var errBackend = errors.New("connection refused")

// fakeTx satisfies pgx.Tx for pgx.BeginFunc. The fakes below never touch it.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakePool struct {
	mu  sync.Mutex
	txs []*fakeTx
}

func (p *fakePool) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("fakePool: Exec not supported")
}

func (p *fakePool) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("fakePool: Query not supported")
}

func (p *fakePool) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx := &fakeTx{}
	p.txs = append(p.txs, tx)
	return tx, nil
}

var _ repository.Pool = (*fakePool)(nil)

func testBase(t *testing.T) Base {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := cache.New(cache.NewMemoryBackend(), logger)
	return NewBase(&fakePool{}, c, logger)
}

type fakeOutbox struct {
	mu     sync.Mutex
	drafts []domain.OutboxDraft
}

func (f *fakeOutbox) Insert(_ context.Context, _ repository.DBTX, d domain.OutboxDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, d)
	return nil
}

func (f *fakeOutbox) FetchUnpublished(context.Context, repository.DBTX, int) ([]domain.OutboxDraft, error) {
	return f.drafts, nil
}

func (f *fakeOutbox) MarkPublished(context.Context, repository.DBTX, []int64) error { return nil }

func (f *fakeOutbox) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventType, len(f.drafts))
	for i, d := range f.drafts {
		out[i] = d.EventType
	}
	return out
}

type fakeCharacters struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]domain.Character
	pending map[uuid.UUID]int64
	err     error
	loads   int
}

func newFakeCharacters() *fakeCharacters {
	return &fakeCharacters{rows: map[uuid.UUID]domain.Character{}, pending: map[uuid.UUID]int64{}}
}

// FindOrCreate mirrors the SQL: stored coins include pending credits, the result does not.
func (f *fakeCharacters) FindOrCreate(_ context.Context, _ repository.DBTX, userID uuid.UUID, initial domain.PlayerState) (*domain.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.rows[userID]
	if !ok {
		c = domain.Character{UserID: userID, State: initial}
		f.rows[userID] = c
	}
	c.State.Coins -= f.pending[userID]
	return &c, nil
}

func (f *fakeCharacters) SaveSnapshot(_ context.Context, _ repository.DBTX, userID uuid.UUID, s domain.PlayerState, rev int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	c := f.rows[userID]
	if rev <= c.Revision {
		return false, nil
	}
	s.Coins += f.pending[userID]
	f.rows[userID] = domain.Character{UserID: userID, State: s, Revision: rev}
	return true, nil
}

func (f *fakeCharacters) AddCoins(_ context.Context, _ repository.DBTX, userID uuid.UUID, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	c, ok := f.rows[userID]
	if !ok {
		return domain.ErrNotFound("character", userID.String())
	}
	c.State.Coins += amount
	f.rows[userID] = c
	f.pending[userID] += amount
	return nil
}

func (f *fakeCharacters) TakePendingCoins(_ context.Context, _ repository.DBTX, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n := f.pending[userID]
	delete(f.pending, userID)
	return n, nil
}

type fakeUsers struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*domain.User
	taps       map[uuid.UUID]int64
	tapsErr    error
	lastLogins map[uuid.UUID]time.Time
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:       map[uuid.UUID]*domain.User{},
		taps:       map[uuid.UUID]int64{},
		lastLogins: map[uuid.UUID]time.Time{},
	}
}

func (f *fakeUsers) add(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = &u
}

func (f *fakeUsers) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByTelegramID(_ context.Context, _ repository.DBTX, tg int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.TelegramID == tg {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Upsert(_ context.Context, _ repository.DBTX, in *domain.User) (*domain.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.TelegramID == in.TelegramID {
			u.Username, u.FirstName, u.LastName = in.Username, in.FirstName, in.LastName
			cp := *u
			return &cp, false, nil
		}
	}
	u := *in
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	f.byID[u.ID] = &u
	cp := u
	return &cp, true, nil
}

func (f *fakeUsers) TouchLogin(_ context.Context, _ repository.DBTX, id uuid.UUID, at time.Time) (domain.LoginTouch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var touch domain.LoginTouch
	if prev, ok := f.lastLogins[id]; ok {
		touch.PreviousLogin = &prev
	}
	f.lastLogins[id] = at
	return touch, nil
}

func (f *fakeUsers) IncrementLifetimeTaps(_ context.Context, _ repository.DBTX, id uuid.UUID, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tapsErr != nil {
		return f.tapsErr
	}
	f.taps[id] += n
	return nil
}

func (f *fakeUsers) SetReferredBy(_ context.Context, _ repository.DBTX, id, referrerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || u.ReferredBy != nil {
		return false, nil
	}
	u.ReferredBy = &referrerID
	return true, nil
}

type fakeReferrals struct {
	mu    sync.Mutex
	links map[uuid.UUID]domain.ReferralLink
	uses  []domain.ReferralUse
}

func newFakeReferrals() *fakeReferrals {
	return &fakeReferrals{links: map[uuid.UUID]domain.ReferralLink{}}
}

func (f *fakeReferrals) FindByUser(_ context.Context, _ repository.DBTX, userID uuid.UUID) (*domain.ReferralLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[userID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (f *fakeReferrals) FindByCode(_ context.Context, _ repository.DBTX, code string) (*domain.ReferralLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.Code == code {
			cp := l
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeReferrals) Generate(ctx context.Context, db repository.DBTX, userID uuid.UUID, code string) (*domain.ReferralLink, error) {
	f.mu.Lock()
	if _, ok := f.links[userID]; !ok {
		f.links[userID] = domain.ReferralLink{Code: code, UserID: userID, CreatedAt: time.Now()}
	}
	f.mu.Unlock()
	return f.FindByUser(ctx, db, userID)
}

func (f *fakeReferrals) RecordUse(_ context.Context, _ repository.DBTX, use domain.ReferralUse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uses = append(f.uses, use)
	l := f.links[use.ReferrerID]
	l.Uses++
	f.links[use.ReferrerID] = l
	return nil
}

func (f *fakeReferrals) Summary(_ context.Context, _ repository.DBTX, userID uuid.UUID) (int, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	var earned int64
	for _, u := range f.uses {
		if u.ReferrerID == userID {
			n++
			earned += u.ReferrerReward
		}
	}
	return n, earned, nil
}

type fakeDailyBonuses struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.DailyBonus
}

func (f *fakeDailyBonuses) Find(_ context.Context, _ repository.DBTX, userID uuid.UUID) (domain.DailyBonus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[userID]; ok {
		return b, nil
	}
	return domain.DailyBonus{UserID: userID}, nil
}

func (f *fakeDailyBonuses) LockForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.DailyBonus, error) {
	return f.Find(ctx, tx, userID)
}

func (f *fakeDailyBonuses) Save(_ context.Context, _ repository.DBTX, b domain.DailyBonus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[b.UserID] = b
	return nil
}

type fakeItems struct {
	items     []domain.StoreItem
	purchases []domain.Purchase
	listCalls int
	err       error
}

func (f *fakeItems) ListActive(context.Context, repository.DBTX) ([]domain.StoreItem, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.StoreItem(nil), f.items...), nil
}

func (f *fakeItems) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.StoreItem, error) {
	for _, it := range f.items {
		if it.ID == id {
			cp := it
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeItems) Upsert(_ context.Context, _ repository.DBTX, it *domain.StoreItem) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	f.items = append(f.items, *it)
	return nil
}

func (f *fakeItems) RecordPurchase(_ context.Context, _ repository.DBTX, p *domain.Purchase) error {
	p.ID = uuid.New()
	f.purchases = append(f.purchases, *p)
	return nil
}

type fakeTournaments struct {
	mu     sync.Mutex
	joined map[uuid.UUID]map[uuid.UUID]int64
	scored map[uuid.UUID]int64
}

func newFakeTournaments() *fakeTournaments {
	return &fakeTournaments{joined: map[uuid.UUID]map[uuid.UUID]int64{}, scored: map[uuid.UUID]int64{}}
}

func (f *fakeTournaments) ListActive(context.Context, repository.DBTX, time.Time) ([]domain.Tournament, error) {
	return []domain.Tournament{}, nil
}

func (f *fakeTournaments) FindByID(context.Context, repository.DBTX, uuid.UUID) (*domain.Tournament, error) {
	return nil, nil
}

func (f *fakeTournaments) Create(context.Context, repository.DBTX, *domain.Tournament) error {
	return nil
}

func (f *fakeTournaments) Join(_ context.Context, _ repository.DBTX, tID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joined[tID] == nil {
		f.joined[tID] = map[uuid.UUID]int64{}
	}
	if _, ok := f.joined[tID][userID]; ok {
		return false, nil
	}
	f.joined[tID][userID] = 0
	return true, nil
}

func (f *fakeTournaments) Leaderboard(context.Context, repository.DBTX, uuid.UUID, int) ([]domain.TournamentEntry, error) {
	return []domain.TournamentEntry{}, nil
}

func (f *fakeTournaments) AddScore(_ context.Context, _ repository.DBTX, userID uuid.UUID, points int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored[userID] += points
	return nil
}

type fakeActions struct {
	mu      sync.Mutex
	tracked []string
}

func (f *fakeActions) Track(_ context.Context, _ repository.DBTX, _ uuid.UUID, action string, _ json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, action)
	return nil
}

type fakeRanking struct{}

func (fakeRanking) Leaderboard(context.Context, repository.DBTX, int) ([]domain.LeaderboardEntry, error) {
	return []domain.LeaderboardEntry{}, nil
}

func (fakeRanking) UserRank(context.Context, repository.DBTX, uuid.UUID) (*domain.LeaderboardEntry, error) {
	return nil, nil
}

type fakePhrases struct {
	rows []domain.Phrase
}

func (f *fakePhrases) List(_ context.Context, _ repository.DBTX, ct domain.CharacterType, lang string) ([]domain.Phrase, error) {
	out := []domain.Phrase{}
	for _, p := range f.rows {
		if p.CharacterType == ct && p.Language == lang {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePhrases) Upsert(_ context.Context, _ repository.DBTX, p *domain.Phrase) error {
	f.rows = append(f.rows, *p)
	return nil
}
