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

const userColumns = `id, telegram_id, username, first_name, last_name, language_code, photo_url,
	lifetime_taps, referred_by, last_login_at, created_at`

type userRepo struct{}

// NewUserRepository returns a pgx-backed UserRepository.
func NewUserRepository() UserRepository {
	return &userRepo{}
}

func (r *userRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) FindByTelegramID(ctx context.Context, db DBTX, telegramID int64) (*domain.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return scanUser(row)
}

// Upsert uses xmax = 0 to tell an insert from an update in one round trip.
func (r *userRepo) Upsert(ctx context.Context, db DBTX, u *domain.User) (*domain.User, bool, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name, language_code, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			language_code = EXCLUDED.language_code,
			photo_url = EXCLUDED.photo_url,
			updated_at = now()
		RETURNING `+userColumns+`, (xmax = 0) AS created`,
		u.TelegramID, u.Username, u.FirstName, u.LastName, u.LanguageCode, u.PhotoURL,
	)

	var out domain.User
	var created bool
	err := row.Scan(&out.ID, &out.TelegramID, &out.Username, &out.FirstName, &out.LastName,
		&out.LanguageCode, &out.PhotoURL, &out.LifetimeTaps, &out.ReferredBy, &out.LastLoginAt,
		&out.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}
	return &out, created, nil
}

func (r *userRepo) TouchLogin(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) (domain.LoginTouch, error) {
	var touch domain.LoginTouch
	err := db.QueryRow(ctx, `
		WITH prev AS (SELECT last_login_at FROM users WHERE id = $1 FOR UPDATE)
		UPDATE users SET last_login_at = $2
		FROM prev
		WHERE users.id = $1
		RETURNING prev.last_login_at,
		          COALESCE((SELECT energy FROM characters WHERE user_id = $1), 0)`,
		id, at,
	).Scan(&touch.PreviousLogin, &touch.CurrentEnergy)
	if errors.Is(err, pgx.ErrNoRows) {
		return touch, domain.ErrNotFound("user", id.String())
	}
	if err != nil {
		return touch, fmt.Errorf("touch login: %w", err)
	}
	return touch, nil
}

func (r *userRepo) IncrementLifetimeTaps(ctx context.Context, db DBTX, id uuid.UUID, n int64) error {
	tag, err := db.Exec(ctx,
		`UPDATE users SET lifetime_taps = lifetime_taps + $2, updated_at = now() WHERE id = $1`, id, n)
	if err != nil {
		return fmt.Errorf("increment lifetime taps: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("user", id.String())
	}
	return nil
}

func (r *userRepo) SetReferredBy(ctx context.Context, db DBTX, id, referrerID uuid.UUID) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE users SET referred_by = $2, updated_at = now()
		WHERE id = $1 AND referred_by IS NULL`, id, referrerID)
	if err != nil {
		return false, fmt.Errorf("set referred_by: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.LanguageCode, &u.PhotoURL, &u.LifetimeTaps, &u.ReferredBy, &u.LastLoginAt, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
