package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/domain"
)

type dailyBonusRepo struct{}

// NewDailyBonusRepository returns a pgx-backed DailyBonusRepository.
func NewDailyBonusRepository() DailyBonusRepository {
	return &dailyBonusRepo{}
}

func (r *dailyBonusRepo) Find(ctx context.Context, db DBTX, userID uuid.UUID) (domain.DailyBonus, error) {
	row := db.QueryRow(ctx, `
		SELECT user_id, streak, last_claimed_on, last_amount
		FROM daily_bonuses WHERE user_id = $1`, userID)
	return scanDailyBonus(row, userID)
}

// LockForUpdate inserts an empty row first so a first-ever claim is locked too.
func (r *dailyBonusRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.DailyBonus, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO daily_bonuses (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return domain.DailyBonus{UserID: userID}, fmt.Errorf("ensure daily bonus row: %w", err)
	}
	row := tx.QueryRow(ctx, `
		SELECT user_id, streak, last_claimed_on, last_amount
		FROM daily_bonuses WHERE user_id = $1 FOR UPDATE`, userID)
	return scanDailyBonus(row, userID)
}

func (r *dailyBonusRepo) Save(ctx context.Context, db DBTX, b domain.DailyBonus) error {
	_, err := db.Exec(ctx, `
		INSERT INTO daily_bonuses (user_id, streak, last_claimed_on, last_amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			streak = EXCLUDED.streak,
			last_claimed_on = EXCLUDED.last_claimed_on,
			last_amount = EXCLUDED.last_amount`,
		b.UserID, b.Streak, b.LastClaimedOn, b.LastAmount)
	if err != nil {
		return fmt.Errorf("save daily bonus: %w", err)
	}
	return nil
}

func scanDailyBonus(row pgx.Row, userID uuid.UUID) (domain.DailyBonus, error) {
	b := domain.DailyBonus{UserID: userID}
	err := row.Scan(&b.UserID, &b.Streak, &b.LastClaimedOn, &b.LastAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyBonus{UserID: userID}, nil
	}
	if err != nil {
		return b, fmt.Errorf("scan daily bonus: %w", err)
	}
	return b, nil
}
