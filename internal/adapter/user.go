package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

// UserAdapter covers users, rankings, action tracking and lifetime taps.
type UserAdapter struct {
	Base
	users       repository.UserRepository
	ranking     repository.RankingRepository
	actions     repository.ActionRepository
	tournaments repository.TournamentRepository
	outbox      repository.OutboxRepository
	now         func() time.Time
}

// NewUserAdapter creates a UserAdapter.
func NewUserAdapter(
	b Base,
	users repository.UserRepository,
	ranking repository.RankingRepository,
	actions repository.ActionRepository,
	tournaments repository.TournamentRepository,
	outbox repository.OutboxRepository,
) *UserAdapter {
	return &UserAdapter{
		Base:        b,
		users:       users,
		ranking:     ranking,
		actions:     actions,
		tournaments: tournaments,
		outbox:      outbox,
		now:         time.Now,
	}
}

// Get returns a user by id.
func (a *UserAdapter) Get(ctx context.Context, id uuid.UUID, force bool) (domain.User, error) {
	return readThrough(ctx, a.Base, cache.UserKey(id.String()), UserTTL, force, domain.User{ID: id},
		func(ctx context.Context) (domain.User, error) {
			u, err := a.users.FindByID(ctx, a.Pool, id)
			if err != nil {
				return domain.User{}, err
			}
			if u == nil {
				return domain.User{}, domain.ErrNotFound("user", id.String())
			}
			return *u, nil
		})
}

// SyncTelegram upserts the Telegram profile and reports whether the user is new.
// New users get a user.registered event in the same transaction.
func (a *UserAdapter) SyncTelegram(ctx context.Context, in domain.User) (domain.User, bool, error) {
	var out *domain.User
	var created bool
	err := a.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, created, err = a.users.Upsert(ctx, tx, &in)
		if err != nil {
			return err
		}
		if created {
			return a.outbox.Insert(ctx, tx, domain.NewUserRegisteredEvent(out))
		}
		return nil
	})
	if err != nil {
		return in, false, a.fail("user", err)
	}

	key := cache.UserKey(out.ID.String())
	a.store(ctx, key, a.Seq.Next(key), *out, UserTTL)
	return *out, created, nil
}

// TouchLogin stamps the login time and returns the previous one.
func (a *UserAdapter) TouchLogin(ctx context.Context, id uuid.UUID) (domain.LoginTouch, error) {
	touch, err := a.users.TouchLogin(ctx, a.Pool, id, a.now())
	if err != nil {
		return domain.LoginTouch{}, a.fail("user", err)
	}
	a.invalidate(ctx, cache.UserKey(id.String()))
	return touch, nil
}

// Rank returns the user's leaderboard position. Rank zero means unranked.
func (a *UserAdapter) Rank(ctx context.Context, id uuid.UUID, force bool) (domain.LeaderboardEntry, error) {
	return readThrough(ctx, a.Base, cache.RankKey(id.String()), LeaderboardTTL, force, domain.LeaderboardEntry{UserID: id},
		func(ctx context.Context) (domain.LeaderboardEntry, error) {
			e, err := a.ranking.UserRank(ctx, a.Pool, id)
			if err != nil {
				return domain.LeaderboardEntry{}, err
			}
			if e == nil {
				return domain.LeaderboardEntry{UserID: id}, nil
			}
			return *e, nil
		})
}

// Leaderboard returns the top players by coins.
func (a *UserAdapter) Leaderboard(ctx context.Context, limit int, force bool) ([]domain.LeaderboardEntry, error) {
	return readThrough(ctx, a.Base, cache.LeaderboardKey(limit), LeaderboardTTL, force, []domain.LeaderboardEntry{},
		func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
			return a.ranking.Leaderboard(ctx, a.Pool, limit)
		})
}

// TrackAction records an analytics action. metadata is marshalled to JSON.
func (a *UserAdapter) TrackAction(ctx context.Context, id uuid.UUID, action string, metadata any) error {
	var raw json.RawMessage
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return domain.ErrValidation("action metadata is not serializable")
		}
		raw = data
	}
	if err := a.actions.Track(ctx, a.Pool, id, action, raw); err != nil {
		return a.fail("user_actions", err)
	}
	return nil
}

// FlushTaps adds n to the lifetime counter and to every open tournament score.
func (a *UserAdapter) FlushTaps(ctx context.Context, id uuid.UUID, n int64) error {
	err := a.withTx(ctx, func(tx pgx.Tx) error {
		if err := a.users.IncrementLifetimeTaps(ctx, tx, id, n); err != nil {
			return err
		}
		return a.tournaments.AddScore(ctx, tx, id, n, a.now())
	})
	if err != nil {
		return a.fail("lifetime_taps", err)
	}
	a.invalidate(ctx, cache.UserKey(id.String()))
	return nil
}
