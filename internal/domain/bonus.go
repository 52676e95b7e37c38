package domain

import (
	"time"
)

// Daily bonus tuning.
const (
	DailyBonusBase      int64 = 50
	DailyBonusMaxStreak       = 7
)

// DailyBonusStatus is what the client shows before the user claims.
type DailyBonusStatus struct {
	Available  bool       `json:"available"`
	Streak     int        `json:"streak"`
	NextAmount int64      `json:"next_amount"`
	LastClaim  *time.Time `json:"last_claimed_on,omitempty"`
}

// DailyBonusAmount is the coin reward for a streak day.
func DailyBonusAmount(streak int) int64 {
	if streak < 1 {
		streak = 1
	}
	if streak > DailyBonusMaxStreak {
		streak = DailyBonusMaxStreak
	}
	return DailyBonusBase * int64(streak)
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CanClaim reports whether no bonus was claimed yet on now's UTC day.
func (b DailyBonus) CanClaim(now time.Time) bool {
	if b.LastClaimedOn == nil {
		return true
	}
	return utcDay(now).After(utcDay(*b.LastClaimedOn))
}

// nextStreak continues the streak after a claim yesterday and restarts it otherwise.
func (b DailyBonus) nextStreak(now time.Time) int {
	if b.LastClaimedOn == nil {
		return 1
	}
	if utcDay(*b.LastClaimedOn).AddDate(0, 0, 1).Equal(utcDay(now)) {
		return min(b.Streak+1, DailyBonusMaxStreak)
	}
	return 1
}

// Status describes the claim that would happen at now.
func (b DailyBonus) Status(now time.Time) DailyBonusStatus {
	st := DailyBonusStatus{Available: b.CanClaim(now), Streak: b.Streak, LastClaim: b.LastClaimedOn}
	if st.Available {
		st.NextAmount = DailyBonusAmount(b.nextStreak(now))
	}
	return st
}

// Claim returns the updated record for a claim at now.
func (b DailyBonus) Claim(now time.Time) (DailyBonus, error) {
	if !b.CanClaim(now) {
		return b, ErrAlreadyClaimed("daily bonus")
	}
	day := utcDay(now)
	next := b
	next.Streak = b.nextStreak(now)
	next.LastClaimedOn = &day
	next.LastAmount = DailyBonusAmount(next.Streak)
	return next, nil
}
