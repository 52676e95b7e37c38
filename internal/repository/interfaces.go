package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pawtap/server/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool is a DBTX that can open transactions. *pgxpool.Pool satisfies it.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepository provides access to users.
type UserRepository interface {
	// FindByID returns a user, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error)

	// FindByTelegramID returns a user by Telegram identity, or nil if absent.
	FindByTelegramID(ctx context.Context, db DBTX, telegramID int64) (*domain.User, error)

	// Upsert inserts or refreshes the profile columns of a user keyed by telegram_id.
	// created reports whether the row is new.
	Upsert(ctx context.Context, db DBTX, u *domain.User) (user *domain.User, created bool, err error)

	// TouchLogin stamps last_login_at and returns the previous stamp with the stored energy.
	TouchLogin(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) (domain.LoginTouch, error)

	// IncrementLifetimeTaps adds n to the lifetime tap counter.
	IncrementLifetimeTaps(ctx context.Context, db DBTX, id uuid.UUID, n int64) error

	// SetReferredBy records the referrer once. It returns false if one was already set.
	SetReferredBy(ctx context.Context, db DBTX, id, referrerID uuid.UUID) (bool, error)
}

// CharacterRepository provides access to characters.
type CharacterRepository interface {
	// FindOrCreate returns the user's character, inserting initial if none exists.
	FindOrCreate(ctx context.Context, db DBTX, userID uuid.UUID, initial domain.PlayerState) (*domain.Character, error)

	// SaveSnapshot writes state only when revision is newer than the stored one.
	SaveSnapshot(ctx context.Context, db DBTX, userID uuid.UUID, state domain.PlayerState, revision int64) (bool, error)

	// AddCoins credits coins to a character that has no live session.
	AddCoins(ctx context.Context, db DBTX, userID uuid.UUID, amount int64) error

	// TakePendingCoins returns and clears credits no session has claimed yet.
	TakePendingCoins(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error)
}

// NotificationRepository provides access to notifications.
type NotificationRepository interface {
	ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.NotificationItem, error)
	Insert(ctx context.Context, db DBTX, n *domain.NotificationItem) error
	MarkRead(ctx context.Context, db DBTX, userID, id uuid.UUID) error

	// Broadcast inserts one notification per user and returns the count.
	Broadcast(ctx context.Context, db DBTX, kind, title, body string) (int64, error)
}

// ItemRepository provides access to game_items and user_items.
type ItemRepository interface {
	ListActive(ctx context.Context, db DBTX) ([]domain.StoreItem, error)
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.StoreItem, error)

	// Upsert inserts or updates an item keyed by slug.
	Upsert(ctx context.Context, db DBTX, item *domain.StoreItem) error

	RecordPurchase(ctx context.Context, db DBTX, p *domain.Purchase) error
}

// ReferralRepository provides access to referral_links and referral_uses.
type ReferralRepository interface {
	FindByUser(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.ReferralLink, error)
	FindByCode(ctx context.Context, db DBTX, code string) (*domain.ReferralLink, error)

	// Generate returns the user's existing link or creates one with code.
	Generate(ctx context.Context, db DBTX, userID uuid.UUID, code string) (*domain.ReferralLink, error)

	// RecordUse stores the redemption and bumps the link's use counter.
	RecordUse(ctx context.Context, db DBTX, use domain.ReferralUse) error

	// Summary totals invites and rewards earned by the referrer.
	Summary(ctx context.Context, db DBTX, userID uuid.UUID) (invited int, earned int64, err error)
}

// TournamentRepository provides access to tournaments and user_tournaments.
type TournamentRepository interface {
	ListActive(ctx context.Context, db DBTX, now time.Time) ([]domain.Tournament, error)
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Tournament, error)
	Create(ctx context.Context, db DBTX, t *domain.Tournament) error

	// Join returns false when the user already entered.
	Join(ctx context.Context, db DBTX, tournamentID, userID uuid.UUID) (bool, error)

	Leaderboard(ctx context.Context, db DBTX, tournamentID uuid.UUID, limit int) ([]domain.TournamentEntry, error)

	// AddScore credits taps to every open tournament the user joined.
	AddScore(ctx context.Context, db DBTX, userID uuid.UUID, points int64, now time.Time) error
}

// DailyBonusRepository provides access to daily_bonuses.
type DailyBonusRepository interface {
	// Find returns the user's record, or a zero record when none exists.
	Find(ctx context.Context, db DBTX, userID uuid.UUID) (domain.DailyBonus, error)

	// LockForUpdate is Find with SELECT ... FOR UPDATE.
	LockForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.DailyBonus, error)

	Save(ctx context.Context, db DBTX, b domain.DailyBonus) error
}

// PhraseRepository provides access to phrases.
type PhraseRepository interface {
	List(ctx context.Context, db DBTX, characterType domain.CharacterType, language string) ([]domain.Phrase, error)
	Upsert(ctx context.Context, db DBTX, p *domain.Phrase) error
}

// RankingRepository computes leaderboards from characters.
type RankingRepository interface {
	Leaderboard(ctx context.Context, db DBTX, limit int) ([]domain.LeaderboardEntry, error)

	// UserRank returns the user's position, or nil if the user has no character.
	UserRank(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.LeaderboardEntry, error)
}

// ActionRepository provides access to user_actions.
type ActionRepository interface {
	Track(ctx context.Context, db DBTX, userID uuid.UUID, action string, metadata json.RawMessage) error
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event in the caller's transaction.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the outbox poller.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished stamps published_at on the given rows.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}

// AdminUserRepository provides access to admin_users.
type AdminUserRepository interface {
	// FindByEmail returns an admin, or nil if absent.
	FindByEmail(ctx context.Context, db DBTX, email string) (*domain.AdminUser, error)

	// Create inserts an admin, updating the hash if the email exists.
	Create(ctx context.Context, db DBTX, admin *domain.AdminUser) error
}
