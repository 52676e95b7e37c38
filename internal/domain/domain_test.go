package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
		errMsg  string
	}{
		{"valid email", "user@example.com", false, ""},
		{"valid email with plus", "user+tag@example.com", false, ""},
		{"empty string", "", true, "email is required"},
		{"no at sign", "userexample.com", true, "invalid email format"},
		{"no tld", "user@example", true, "invalid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePositiveAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		wantErr bool
	}{
		{"positive", 100, false},
		{"one coin", 1, false},
		{"zero", 0, true},
		{"negative", -100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveAmount(tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "amount must be positive")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateReferralCode(t *testing.T) {
	assert.NoError(t, ValidateReferralCode("PAW7K2QX"))
	assert.Error(t, ValidateReferralCode("paw7k2qx"))
	assert.Error(t, ValidateReferralCode("ABC"))
	assert.Error(t, ValidateReferralCode(""))
}

func TestValidateStoreItem(t *testing.T) {
	valid := StoreItem{Slug: "fish-snack", Name: "Fish snack", Category: ItemFood, Price: 50, HungerDelta: 20}

	t.Run("valid item", func(t *testing.T) {
		require.NoError(t, ValidateStoreItem(valid))
	})

	t.Run("bad slug", func(t *testing.T) {
		item := valid
		item.Slug = "Fish Snack"
		assert.ErrorContains(t, ValidateStoreItem(item), "slug")
	})

	t.Run("negative price", func(t *testing.T) {
		item := valid
		item.Price = -1
		assert.ErrorContains(t, ValidateStoreItem(item), "price")
	})

	t.Run("unknown category", func(t *testing.T) {
		item := valid
		item.Category = "weapon"
		assert.ErrorContains(t, ValidateStoreItem(item), "category")
	})

	t.Run("avatar without url", func(t *testing.T) {
		item := valid
		item.Category = ItemAvatar
		assert.ErrorContains(t, ValidateStoreItem(item), "avatar_url")
	})
}

// --- AppError Tests ---

func TestAppError(t *testing.T) {
	t.Run("error without cause", func(t *testing.T) {
		err := ErrNotFound("item", "abc")
		assert.Equal(t, "NOT_FOUND: item abc not found", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("error with cause unwraps", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrUnavailable("character", cause)
		assert.Contains(t, err.Error(), "connection refused")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 503, err.Status)
	})

	t.Run("HasCode sees through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("tap: %w", ErrEnergyEmpty())
		assert.True(t, HasCode(wrapped, CodeEnergyEmpty))
		assert.False(t, HasCode(wrapped, CodeInsufficientCoins))
		assert.False(t, HasCode(errors.New("plain"), CodeEnergyEmpty))
	})

	t.Run("insufficient coins message", func(t *testing.T) {
		err := ErrInsufficientCoins(50, 100)
		assert.Equal(t, CodeInsufficientCoins, err.Code)
		assert.Contains(t, err.Message, "need 100 coins, have 50")
	})
}

// --- PlayerState Tests ---

func TestPlayerState_Normalize(t *testing.T) {
	s := PlayerState{
		Energy:   Energy{Current: 150, Max: 100, RegenRate: -2},
		Coins:    -5,
		Progress: Progress{Current: -1, Required: 100},
		Level:    Level{Current: 0},
		Profile:  Profile{Hunger: 140, Happiness: -3},
	}

	n := s.Normalize()
	assert.Equal(t, 100, n.Energy.Current)
	assert.Equal(t, 0, n.Energy.RegenRate)
	assert.Equal(t, int64(0), n.Coins)
	assert.Equal(t, 0, n.Progress.Current)
	assert.Equal(t, 1, n.Level.Current)
	assert.Equal(t, 100, n.Profile.Hunger)
	assert.Equal(t, 0, n.Profile.Happiness)
	assert.Equal(t, CharacterCat, n.CharacterType)
}

func TestParseCharacterType(t *testing.T) {
	assert.Equal(t, CharacterDragon, ParseCharacterType("dragon"))
	assert.Equal(t, CharacterCat, ParseCharacterType("unicorn"))
	assert.Equal(t, CharacterCat, ParseCharacterType(""))
}

func TestTournament_IsOpen(t *testing.T) {
	now := time.Now()
	tour := Tournament{Active: true, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}
	assert.True(t, tour.IsOpen(now))
	assert.False(t, tour.IsOpen(now.Add(2*time.Hour)))
	assert.False(t, tour.IsOpen(now.Add(-2*time.Hour)))

	tour.Active = false
	assert.False(t, tour.IsOpen(now))
}

// --- Event Tests ---

func TestNewCharacterEvolvedEvent(t *testing.T) {
	userID := uuid.New()
	draft := NewCharacterEvolvedEvent(userID, CharacterFox, 2)

	assert.Equal(t, AggregateCharacter, draft.AggregateType)
	assert.Equal(t, EventCharacterEvolved, draft.EventType)
	assert.Equal(t, userID.String(), draft.PartitionKey)
	assert.Equal(t, "pawtap.character.evolved", draft.Topic())

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(draft.Payload, &payload))
	assert.Equal(t, "fox", payload["character_type"])
	assert.Equal(t, float64(2), payload["level"])
}

func TestNewReferralUsedEvent_KeyedByReferrer(t *testing.T) {
	use := ReferralUse{Code: "PAW7K2QX", ReferrerID: uuid.New(), InviteeID: uuid.New(), ReferrerReward: 500}
	draft := NewReferralUsedEvent(use)
	assert.Equal(t, use.ReferrerID.String(), draft.AggregateID)
	assert.Equal(t, EventReferralUsed, draft.EventType)
}
