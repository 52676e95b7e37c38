package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stat bounds for hunger and happiness.
const (
	MinStat = 0
	MaxStat = 100
)

// CharacterType selects the cosmetic and behavioral variant of a pet.
type CharacterType string

const (
	CharacterCat    CharacterType = "cat"
	CharacterDog    CharacterType = "dog"
	CharacterDragon CharacterType = "dragon"
	CharacterFox    CharacterType = "fox"
)

// ParseCharacterType returns the known type for s, falling back to cat.
func ParseCharacterType(s string) CharacterType {
	switch CharacterType(s) {
	case CharacterCat, CharacterDog, CharacterDragon, CharacterFox:
		return CharacterType(s)
	default:
		return CharacterCat
	}
}

// Energy is the bounded, regenerating resource gating taps.
type Energy struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	RegenRate int `json:"regen_rate"` // units restored per regen interval
}

// Progress counts taps toward the next level threshold.
type Progress struct {
	Current  int `json:"current"`
	Required int `json:"required"`
}

// Level is the evolution stage, starting at 1.
type Level struct {
	Current int `json:"current"`
}

// Profile holds the pet's care stats.
type Profile struct {
	Hunger        int    `json:"hunger"`
	Happiness     int    `json:"happiness"`
	Avatar        string `json:"avatar,omitempty"`
	ThoughtStatus string `json:"thought_status,omitempty"`
}

// DailyTasks tracks the per-day task flag.
type DailyTasks struct {
	CompletedToday bool `json:"completed_today"`
}

// PlayerState is the live numeric state of one player's pet.
type PlayerState struct {
	Energy        Energy        `json:"energy"`
	Coins         int64         `json:"coins"`
	Progress      Progress      `json:"progress"`
	Level         Level         `json:"level"`
	Profile       Profile       `json:"profile"`
	CharacterType CharacterType `json:"character_type"`
	DailyTasks    DailyTasks    `json:"daily_tasks"`
	UserID        string        `json:"user_id,omitempty"`
}

// Normalize clamps every bounded field into range.
func (s PlayerState) Normalize() PlayerState {
	if s.Energy.Max < 0 {
		s.Energy.Max = 0
	}
	s.Energy.Current = clamp(s.Energy.Current, 0, s.Energy.Max)
	if s.Energy.RegenRate < 0 {
		s.Energy.RegenRate = 0
	}
	if s.Coins < 0 {
		s.Coins = 0
	}
	if s.Progress.Current < 0 {
		s.Progress.Current = 0
	}
	if s.Level.Current < 1 {
		s.Level.Current = 1
	}
	s.Profile.Hunger = ClampStat(s.Profile.Hunger)
	s.Profile.Happiness = ClampStat(s.Profile.Happiness)
	if s.CharacterType == "" {
		s.CharacterType = CharacterCat
	}
	return s
}

// ClampStat bounds a care stat to [MinStat, MaxStat].
func ClampStat(v int) int {
	return clamp(v, MinStat, MaxStat)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// User represents a users row, keyed by the Telegram identity.
type User struct {
	ID           uuid.UUID  `json:"id"`
	TelegramID   int64      `json:"telegram_id"`
	Username     string     `json:"username,omitempty"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	LanguageCode string     `json:"language_code,omitempty"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	LifetimeTaps int64      `json:"lifetime_taps"`
	ReferredBy   *uuid.UUID `json:"referred_by,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Character is the durable snapshot of a PlayerState in the characters table.
type Character struct {
	UserID    uuid.UUID   `json:"user_id"`
	State     PlayerState `json:"state"`
	Revision  int64       `json:"revision"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LoginTouch is what the backend returns when a session starts.
type LoginTouch struct {
	PreviousLogin *time.Time
	CurrentEnergy int
}
