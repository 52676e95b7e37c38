package domain

import (
	"time"

	"github.com/google/uuid"
)

// ItemCategory groups store items by effect.
type ItemCategory string

const (
	ItemFood   ItemCategory = "food"
	ItemToy    ItemCategory = "toy"
	ItemEnergy ItemCategory = "energy"
	ItemAvatar ItemCategory = "avatar"
)

// StoreItem represents a game_items row.
type StoreItem struct {
	ID             uuid.UUID    `json:"id" yaml:"-"`
	Slug           string       `json:"slug" yaml:"slug"`
	Name           string       `json:"name" yaml:"name"`
	Description    string       `json:"description" yaml:"description"`
	Category       ItemCategory `json:"category" yaml:"category"`
	Price          int64        `json:"price" yaml:"price"`
	HungerDelta    int          `json:"hunger_delta,omitempty" yaml:"hunger_delta"`
	HappinessDelta int          `json:"happiness_delta,omitempty" yaml:"happiness_delta"`
	EnergyMaxBonus int          `json:"energy_max_bonus,omitempty" yaml:"energy_max_bonus"`
	AvatarURL      string       `json:"avatar_url,omitempty" yaml:"avatar_url"`
	Active         bool         `json:"active" yaml:"active"`
	SortOrder      int          `json:"sort_order" yaml:"sort_order"`
}

// Purchase records a user_items row.
type Purchase struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ItemID      uuid.UUID `json:"item_id"`
	Price       int64     `json:"price"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// NotificationItem represents a notifications row.
type NotificationItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ReferralLink represents a referral_links row.
type ReferralLink struct {
	Code      string    `json:"code"`
	UserID    uuid.UUID `json:"user_id"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"created_at"`
}

// ReferralUse is the outcome of redeeming a referral code.
type ReferralUse struct {
	Code           string    `json:"code"`
	ReferrerID     uuid.UUID `json:"referrer_id"`
	InviteeID      uuid.UUID `json:"invitee_id"`
	InviteeReward  int64     `json:"invitee_reward"`
	ReferrerReward int64     `json:"referrer_reward"`
}

// Tournament represents a tournaments row.
type Tournament struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	EntryFee  int64     `json:"entry_fee"`
	PrizePool int64     `json:"prize_pool"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Active    bool      `json:"active"`
}

// IsOpen reports whether the tournament accepts entries at now.
func (t Tournament) IsOpen(now time.Time) bool {
	return t.Active && !now.Before(t.StartsAt) && now.Before(t.EndsAt)
}

// TournamentEntry represents a user_tournaments row joined with the username.
type TournamentEntry struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Score        int64     `json:"score"`
	Rank         int       `json:"rank"`
	JoinedAt     time.Time `json:"joined_at"`
}

// DailyBonus represents a daily_bonuses row.
type DailyBonus struct {
	UserID        uuid.UUID  `json:"user_id"`
	Streak        int        `json:"streak"`
	LastClaimedOn *time.Time `json:"last_claimed_on,omitempty"`
	LastAmount    int64      `json:"last_amount"`
}

// Phrase is a thought bubble line shown above the pet.
type Phrase struct {
	ID            int64         `json:"id" yaml:"-"`
	CharacterType CharacterType `json:"character_type" yaml:"character_type"`
	Language      string        `json:"language" yaml:"language"`
	Text          string        `json:"text" yaml:"text"`
}

// LeaderboardEntry is one ranked row of the global leaderboard.
type LeaderboardEntry struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Coins    int64     `json:"coins"`
	Level    int       `json:"level"`
	Rank     int       `json:"rank"`
}

// RewardType selects where a claimed reward lands.
type RewardType string

const (
	RewardCoins  RewardType = "coins"
	RewardEnergy RewardType = "energy"
)
