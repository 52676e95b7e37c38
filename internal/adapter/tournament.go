package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

const tournamentBoardSize = 100

// TournamentAdapter lists, joins and ranks tournaments.
type TournamentAdapter struct {
	Base
	repo   repository.TournamentRepository
	outbox repository.OutboxRepository
	now    func() time.Time
}

// NewTournamentAdapter creates a TournamentAdapter.
func NewTournamentAdapter(b Base, repo repository.TournamentRepository, outbox repository.OutboxRepository) *TournamentAdapter {
	return &TournamentAdapter{Base: b, repo: repo, outbox: outbox, now: time.Now}
}

// Active returns tournaments that have not ended.
func (a *TournamentAdapter) Active(ctx context.Context, force bool) ([]domain.Tournament, error) {
	return readThrough(ctx, a.Base, cache.TournamentsKey(), TournamentsTTL, force, []domain.Tournament{},
		func(ctx context.Context) ([]domain.Tournament, error) {
			return a.repo.ListActive(ctx, a.Pool, a.now())
		})
}

// Get returns one tournament.
func (a *TournamentAdapter) Get(ctx context.Context, id uuid.UUID) (domain.Tournament, error) {
	t, err := a.repo.FindByID(ctx, a.Pool, id)
	if err != nil {
		return domain.Tournament{}, a.fail("tournaments", err)
	}
	if t == nil {
		return domain.Tournament{}, domain.ErrNotFound("tournament", id.String())
	}
	return *t, nil
}

// Join enters userID into the tournament.
func (a *TournamentAdapter) Join(ctx context.Context, tournamentID, userID uuid.UUID) error {
	err := a.withTx(ctx, func(tx pgx.Tx) error {
		joined, err := a.repo.Join(ctx, tx, tournamentID, userID)
		if err != nil {
			return err
		}
		if !joined {
			return domain.ErrConflict("already joined this tournament")
		}
		return a.outbox.Insert(ctx, tx, domain.NewTournamentJoinedEvent(userID, tournamentID))
	})
	if err != nil {
		return a.fail("user_tournaments", err)
	}
	a.invalidate(ctx, cache.TournamentBoardKey(tournamentID.String()))
	return nil
}

// Leaderboard returns the top entries of a tournament.
func (a *TournamentAdapter) Leaderboard(ctx context.Context, tournamentID uuid.UUID, force bool) ([]domain.TournamentEntry, error) {
	return readThrough(ctx, a.Base, cache.TournamentBoardKey(tournamentID.String()), LeaderboardTTL, force, []domain.TournamentEntry{},
		func(ctx context.Context) ([]domain.TournamentEntry, error) {
			return a.repo.Leaderboard(ctx, a.Pool, tournamentID, tournamentBoardSize)
		})
}

// Create stores a new tournament.
func (a *TournamentAdapter) Create(ctx context.Context, t *domain.Tournament) error {
	if err := a.repo.Create(ctx, a.Pool, t); err != nil {
		return a.fail("tournaments", err)
	}
	a.invalidate(ctx, cache.TournamentsKey())
	return nil
}
