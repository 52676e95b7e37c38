package adapter

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

// ReferralAdapter manages referral codes and redemptions.
type ReferralAdapter struct {
	Base
	referrals repository.ReferralRepository
	users     repository.UserRepository
	outbox    repository.OutboxRepository
	newCode   func() string
}

// NewReferralAdapter creates a ReferralAdapter.
func NewReferralAdapter(b Base, referrals repository.ReferralRepository, users repository.UserRepository, outbox repository.OutboxRepository) *ReferralAdapter {
	return &ReferralAdapter{Base: b, referrals: referrals, users: users, outbox: outbox, newCode: domain.NewReferralCode}
}

// Summary returns the user's link and invite totals.
func (a *ReferralAdapter) Summary(ctx context.Context, user domain.User, force bool) (domain.ReferralSummary, error) {
	fallback := domain.ReferralSummary{WasInvite: user.ReferredBy != nil}
	return readThrough(ctx, a.Base, cache.ReferralKey(user.ID.String()), ReferralTTL, force, fallback,
		func(ctx context.Context) (domain.ReferralSummary, error) {
			link, err := a.referrals.FindByUser(ctx, a.Pool, user.ID)
			if err != nil {
				return fallback, err
			}
			invited, earned, err := a.referrals.Summary(ctx, a.Pool, user.ID)
			if err != nil {
				return fallback, err
			}
			return domain.ReferralSummary{Link: link, Invited: invited, Earned: earned, WasInvite: user.ReferredBy != nil}, nil
		})
}

// Generate returns the user's code, creating one on first call.
func (a *ReferralAdapter) Generate(ctx context.Context, userID uuid.UUID) (domain.ReferralLink, error) {
	link, err := a.referrals.Generate(ctx, a.Pool, userID, a.newCode())
	if err != nil {
		return domain.ReferralLink{}, a.fail("referral_links", err)
	}
	if link == nil {
		return domain.ReferralLink{}, domain.ErrInternal("referral link missing after insert", nil)
	}
	a.invalidate(ctx, cache.ReferralKey(userID.String()))
	return *link, nil
}

// Use redeems code for invitee. A user can be referred once and never by themselves.
func (a *ReferralAdapter) Use(ctx context.Context, inviteeID uuid.UUID, code string) (domain.ReferralUse, error) {
	code = domain.NormalizeReferralCode(code)
	if err := domain.ValidateReferralCode(code); err != nil {
		return domain.ReferralUse{}, domain.ErrValidation(err.Error())
	}

	var use domain.ReferralUse
	err := a.withTx(ctx, func(tx pgx.Tx) error {
		link, err := a.referrals.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if link == nil {
			return domain.ErrNotFound("referral code", code)
		}
		if link.UserID == inviteeID {
			return domain.ErrValidation("cannot use your own referral code")
		}

		ok, err := a.users.SetReferredBy(ctx, tx, inviteeID, link.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyClaimed("referral")
		}

		use = domain.ReferralUse{
			Code:           code,
			ReferrerID:     link.UserID,
			InviteeID:      inviteeID,
			InviteeReward:  domain.ReferralInviteeReward,
			ReferrerReward: domain.ReferralReferrerReward,
		}
		if err := a.referrals.RecordUse(ctx, tx, use); err != nil {
			return err
		}
		return a.outbox.Insert(ctx, tx, domain.NewReferralUsedEvent(use))
	})
	if err != nil {
		return domain.ReferralUse{}, a.fail("referral", err)
	}

	a.invalidate(ctx, cache.ReferralKey(use.ReferrerID.String()))
	a.invalidate(ctx, cache.ReferralKey(inviteeID.String()))
	a.invalidate(ctx, cache.UserKey(inviteeID.String()))
	return use, nil
}
