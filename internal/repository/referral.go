package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/domain"
)

type referralRepo struct{}

// NewReferralRepository returns a pgx-backed ReferralRepository.
func NewReferralRepository() ReferralRepository {
	return &referralRepo{}
}

func (r *referralRepo) FindByUser(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.ReferralLink, error) {
	row := db.QueryRow(ctx,
		`SELECT code, user_id, uses, created_at FROM referral_links WHERE user_id = $1`, userID)
	return scanReferralLink(row)
}

func (r *referralRepo) FindByCode(ctx context.Context, db DBTX, code string) (*domain.ReferralLink, error) {
	row := db.QueryRow(ctx,
		`SELECT code, user_id, uses, created_at FROM referral_links WHERE code = $1`, code)
	return scanReferralLink(row)
}

// Generate is idempotent per user: a second call returns the first code.
func (r *referralRepo) Generate(ctx context.Context, db DBTX, userID uuid.UUID, code string) (*domain.ReferralLink, error) {
	_, err := db.Exec(ctx, `
		INSERT INTO referral_links (code, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, code, userID)
	if err != nil {
		return nil, fmt.Errorf("insert referral link: %w", err)
	}
	return r.FindByUser(ctx, db, userID)
}

func (r *referralRepo) RecordUse(ctx context.Context, db DBTX, use domain.ReferralUse) error {
	tag, err := db.Exec(ctx, `
		INSERT INTO referral_uses (invitee_id, code, referrer_id, invitee_reward, referrer_reward)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (invitee_id) DO NOTHING`,
		use.InviteeID, use.Code, use.ReferrerID, use.InviteeReward, use.ReferrerReward)
	if err != nil {
		return fmt.Errorf("insert referral use: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyClaimed("referral")
	}
	if _, err := db.Exec(ctx, `UPDATE referral_links SET uses = uses + 1 WHERE code = $1`, use.Code); err != nil {
		return fmt.Errorf("bump referral uses: %w", err)
	}
	return nil
}

func (r *referralRepo) Summary(ctx context.Context, db DBTX, userID uuid.UUID) (int, int64, error) {
	var invited int
	var earned int64
	err := db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(referrer_reward), 0)
		FROM referral_uses WHERE referrer_id = $1`, userID).Scan(&invited, &earned)
	if err != nil {
		return 0, 0, fmt.Errorf("referral summary: %w", err)
	}
	return invited, earned, nil
}

func scanReferralLink(row pgx.Row) (*domain.ReferralLink, error) {
	var l domain.ReferralLink
	err := row.Scan(&l.Code, &l.UserID, &l.Uses, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan referral link: %w", err)
	}
	return &l, nil
}
