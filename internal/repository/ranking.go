package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/domain"
)

type rankingRepo struct{}

// NewRankingRepository returns a pgx-backed RankingRepository.
func NewRankingRepository() RankingRepository {
	return &rankingRepo{}
}

const rankedCharacters = `
	SELECT c.user_id, u.username, c.coins, c.level,
	       RANK() OVER (ORDER BY c.coins DESC, c.level DESC)::int AS rank
	FROM characters c
	JOIN users u ON u.id = c.user_id`

func (r *rankingRepo) Leaderboard(ctx context.Context, db DBTX, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := db.Query(ctx, rankedCharacters+` ORDER BY rank, c.user_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	out := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Coins, &e.Level, &e.Rank); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UserRank backs the get_user_rank call.
func (r *rankingRepo) UserRank(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := db.QueryRow(ctx, `
		SELECT user_id, username, coins, level, rank
		FROM (`+rankedCharacters+`) ranked
		WHERE user_id = $1`, userID,
	).Scan(&e.UserID, &e.Username, &e.Coins, &e.Level, &e.Rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user rank: %w", err)
	}
	return &e, nil
}
