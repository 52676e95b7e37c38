package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/domain"
)

type tournamentRepo struct{}

// NewTournamentRepository returns a pgx-backed TournamentRepository.
func NewTournamentRepository() TournamentRepository {
	return &tournamentRepo{}
}

func (r *tournamentRepo) ListActive(ctx context.Context, db DBTX, now time.Time) ([]domain.Tournament, error) {
	rows, err := db.Query(ctx, `
		SELECT id, title, entry_fee, prize_pool, starts_at, ends_at, active
		FROM tournaments
		WHERE active AND ends_at > $1
		ORDER BY starts_at`, now)
	if err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	defer rows.Close()

	out := []domain.Tournament{}
	for rows.Next() {
		var t domain.Tournament
		if err := rows.Scan(&t.ID, &t.Title, &t.EntryFee, &t.PrizePool, &t.StartsAt, &t.EndsAt, &t.Active); err != nil {
			return nil, fmt.Errorf("scan tournament: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tournamentRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Tournament, error) {
	var t domain.Tournament
	err := db.QueryRow(ctx, `
		SELECT id, title, entry_fee, prize_pool, starts_at, ends_at, active
		FROM tournaments WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.EntryFee, &t.PrizePool, &t.StartsAt, &t.EndsAt, &t.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tournament: %w", err)
	}
	return &t, nil
}

func (r *tournamentRepo) Create(ctx context.Context, db DBTX, t *domain.Tournament) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO tournaments (id, title, entry_fee, prize_pool, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Title, t.EntryFee, t.PrizePool, t.StartsAt, t.EndsAt, t.Active)
	if err != nil {
		return fmt.Errorf("insert tournament: %w", err)
	}
	return nil
}

func (r *tournamentRepo) Join(ctx context.Context, db DBTX, tournamentID, userID uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO user_tournaments (tournament_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, tournamentID, userID)
	if err != nil {
		return false, fmt.Errorf("join tournament: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *tournamentRepo) Leaderboard(ctx context.Context, db DBTX, tournamentID uuid.UUID, limit int) ([]domain.TournamentEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT ut.tournament_id, ut.user_id, u.username, ut.score,
		       RANK() OVER (ORDER BY ut.score DESC)::int AS rank, ut.joined_at
		FROM user_tournaments ut
		JOIN users u ON u.id = ut.user_id
		WHERE ut.tournament_id = $1
		ORDER BY ut.score DESC, ut.joined_at
		LIMIT $2`, tournamentID, limit)
	if err != nil {
		return nil, fmt.Errorf("tournament leaderboard: %w", err)
	}
	defer rows.Close()

	out := []domain.TournamentEntry{}
	for rows.Next() {
		var e domain.TournamentEntry
		if err := rows.Scan(&e.TournamentID, &e.UserID, &e.Username, &e.Score, &e.Rank, &e.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan tournament entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *tournamentRepo) AddScore(ctx context.Context, db DBTX, userID uuid.UUID, points int64, now time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE user_tournaments ut SET score = ut.score + $2
		FROM tournaments t
		WHERE ut.tournament_id = t.id AND ut.user_id = $1
		  AND t.active AND t.starts_at <= $3 AND t.ends_at > $3`, userID, points, now)
	if err != nil {
		return fmt.Errorf("add tournament score: %w", err)
	}
	return nil
}
