package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Referral rewards in coins.
const (
	ReferralInviteeReward  int64 = 100
	ReferralReferrerReward int64 = 250
	referralCodeLen              = 8
)

// NewReferralCode derives an uppercase hex code from a random UUID.
func NewReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:referralCodeLen])
}

// NormalizeReferralCode trims and upper-cases user input before validation.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ReferralSummary is the referral screen payload.
type ReferralSummary struct {
	Link      *ReferralLink `json:"link,omitempty"`
	Invited   int           `json:"invited"`
	Earned    int64         `json:"earned"`
	WasInvite bool          `json:"was_invited"`
}
