package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/domain"
)

type characterRepo struct{}

// NewCharacterRepository returns a pgx-backed CharacterRepository.
func NewCharacterRepository() CharacterRepository {
	return &characterRepo{}
}

// FindOrCreate inserts initial unless a row exists, then reads the row back. The
// returned coins leave out pending credits; TakePendingCoins hands those over.
func (r *characterRepo) FindOrCreate(ctx context.Context, db DBTX, userID uuid.UUID, initial domain.PlayerState) (*domain.Character, error) {
	s := initial
	_, err := db.Exec(ctx, `
		INSERT INTO characters (user_id, character_type, level, energy, energy_max, regen_rate, coins,
			progress, required, hunger, happiness, avatar, thought_status, daily_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, string(s.CharacterType), s.Level.Current, s.Energy.Current, s.Energy.Max,
		s.Energy.RegenRate, s.Coins, s.Progress.Current, s.Progress.Required, s.Profile.Hunger,
		s.Profile.Happiness, s.Profile.Avatar, s.Profile.ThoughtStatus, s.DailyTasks.CompletedToday,
	)
	if err != nil {
		return nil, fmt.Errorf("insert character: %w", err)
	}

	row := db.QueryRow(ctx, `
		SELECT user_id, character_type, level, energy, energy_max, regen_rate, coins - pending_coins, progress,
		       required, hunger, happiness, avatar, thought_status, daily_completed, revision, updated_at
		FROM characters WHERE user_id = $1`, userID)
	return scanCharacter(row)
}

// SaveSnapshot drops writes whose revision is not newer than the stored one, so an
// older snapshot that lands late cannot overwrite a newer one. Unclaimed credits are
// added on top of the snapshot coins.
func (r *characterRepo) SaveSnapshot(ctx context.Context, db DBTX, userID uuid.UUID, s domain.PlayerState, revision int64) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE characters SET
			character_type = $2, level = $3, energy = $4, energy_max = $5, regen_rate = $6,
			coins = $7 + pending_coins, progress = $8, required = $9, hunger = $10, happiness = $11,
			avatar = $12, thought_status = $13, daily_completed = $14,
			revision = $15, updated_at = now()
		WHERE user_id = $1 AND revision < $15`,
		userID, string(s.CharacterType), s.Level.Current, s.Energy.Current, s.Energy.Max,
		s.Energy.RegenRate, s.Coins, s.Progress.Current, s.Progress.Required, s.Profile.Hunger,
		s.Profile.Happiness, s.Profile.Avatar, s.Profile.ThoughtStatus, s.DailyTasks.CompletedToday,
		revision,
	)
	if err != nil {
		return false, fmt.Errorf("save character snapshot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddCoins credits coins and records them as pending until a session claims them.
// The revision and updated_at are left alone: snapshots keep the credit because
// SaveSnapshot adds pending coins back.
func (r *characterRepo) AddCoins(ctx context.Context, db DBTX, userID uuid.UUID, amount int64) error {
	tag, err := db.Exec(ctx, `
		UPDATE characters SET coins = coins + $2, pending_coins = pending_coins + $2
		WHERE user_id = $1`, userID, amount)
	if err != nil {
		return fmt.Errorf("add coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("character", userID.String())
	}
	return nil
}

// TakePendingCoins returns the unclaimed credits and clears them. coins is unchanged:
// the caller's state now carries the amount into its next snapshot.
func (r *characterRepo) TakePendingCoins(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error) {
	var taken int64
	err := db.QueryRow(ctx, `
		UPDATE characters c SET pending_coins = 0
		FROM (SELECT user_id, pending_coins FROM characters WHERE user_id = $1 FOR UPDATE) old
		WHERE c.user_id = old.user_id AND old.pending_coins > 0
		RETURNING old.pending_coins`, userID).Scan(&taken)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("take pending coins: %w", err)
	}
	return taken, nil
}

func scanCharacter(row pgx.Row) (*domain.Character, error) {
	var c domain.Character
	var charType string
	s := &c.State
	err := row.Scan(&c.UserID, &charType, &s.Level.Current, &s.Energy.Current, &s.Energy.Max,
		&s.Energy.RegenRate, &s.Coins, &s.Progress.Current, &s.Progress.Required, &s.Profile.Hunger,
		&s.Profile.Happiness, &s.Profile.Avatar, &s.Profile.ThoughtStatus, &s.DailyTasks.CompletedToday,
		&c.Revision, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan character: %w", err)
	}
	s.CharacterType = domain.ParseCharacterType(charType)
	s.UserID = c.UserID.String()
	return &c, nil
}
