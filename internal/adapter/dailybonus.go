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

// DailyBonusAdapter reads and claims the daily login bonus.
type DailyBonusAdapter struct {
	Base
	repo   repository.DailyBonusRepository
	outbox repository.OutboxRepository
	now    func() time.Time
}

// NewDailyBonusAdapter creates a DailyBonusAdapter.
func NewDailyBonusAdapter(b Base, repo repository.DailyBonusRepository, outbox repository.OutboxRepository) *DailyBonusAdapter {
	return &DailyBonusAdapter{Base: b, repo: repo, outbox: outbox, now: time.Now}
}

// Status reports whether a bonus can be claimed now and how much it would pay.
// The fallback is "not available" so an outage never invites a double claim.
func (a *DailyBonusAdapter) Status(ctx context.Context, userID uuid.UUID, force bool) (domain.DailyBonusStatus, error) {
	rec, err := readThrough(ctx, a.Base, cache.DailyBonusKey(userID.String()), DailyBonusTTL, force, domain.DailyBonus{UserID: userID},
		func(ctx context.Context) (domain.DailyBonus, error) {
			return a.repo.Find(ctx, a.Pool, userID)
		})
	if err != nil {
		return domain.DailyBonusStatus{}, err
	}
	return rec.Status(a.now()), nil
}

// Claim records today's claim and returns the updated record.
func (a *DailyBonusAdapter) Claim(ctx context.Context, userID uuid.UUID) (domain.DailyBonus, error) {
	now := a.now()
	var claimed domain.DailyBonus
	err := a.withTx(ctx, func(tx pgx.Tx) error {
		cur, err := a.repo.LockForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		claimed, err = cur.Claim(now)
		if err != nil {
			return err
		}
		if err := a.repo.Save(ctx, tx, claimed); err != nil {
			return err
		}
		return a.outbox.Insert(ctx, tx, domain.NewRewardClaimedEvent(userID, "daily_bonus", domain.RewardCoins, claimed.LastAmount))
	})
	if err != nil {
		return domain.DailyBonus{}, a.fail("daily_bonuses", err)
	}
	a.invalidate(ctx, cache.DailyBonusKey(userID.String()))
	return claimed, nil
}
