package game

import "github.com/pawtap/server/internal/domain"

// Action is a state transition request handed to Reduce.
type Action interface {
	ActionName() string
}

// Tap spends one energy and awards Points coins and one progress tap.
type Tap struct {
	Points int
}

// RegenEnergy restores energy up to the cap.
type RegenEnergy struct {
	Amount int
}

// Evolve advances one level and resets progress.
type Evolve struct{}

// SetLevel overwrites the level, e.g. from a remote snapshot.
type SetLevel struct {
	Level int
}

// UpdateEnergyMax changes the energy cap.
type UpdateEnergyMax struct {
	Max int
}

// BuyItem deducts the item price.
type BuyItem struct {
	ItemID string
	Price  int64
}

// ClaimReward credits coins or energy.
type ClaimReward struct {
	Type   domain.RewardType
	Amount int64
}

// UpdateCharacter patches the care profile. Absolute values apply before deltas.
type UpdateCharacter struct {
	Hunger         *int
	Happiness      *int
	HungerDelta    int
	HappinessDelta int
	CharacterType  domain.CharacterType
}

// SetAvatar replaces the avatar URL.
type SetAvatar struct {
	URL string
}

// SetThoughtStatus replaces the thought bubble text.
type SetThoughtStatus struct {
	Text string
}

// SetUserID binds the state to a remote account.
type SetUserID struct {
	ID string
}

// CompleteDailyTasks sets or clears the daily task flag.
type CompleteDailyTasks struct {
	Completed bool
}

// LoadSnapshot replaces the whole state with an authoritative remote copy.
type LoadSnapshot struct {
	State domain.PlayerState
}

func (Tap) ActionName() string                { return "TAP" }
func (RegenEnergy) ActionName() string        { return "REGEN_ENERGY" }
func (Evolve) ActionName() string             { return "EVOLVE" }
func (SetLevel) ActionName() string           { return "SET_LEVEL" }
func (UpdateEnergyMax) ActionName() string    { return "UPDATE_ENERGY_MAX" }
func (BuyItem) ActionName() string            { return "BUY_ITEM" }
func (ClaimReward) ActionName() string        { return "CLAIM_REWARD" }
func (UpdateCharacter) ActionName() string    { return "UPDATE_CHARACTER" }
func (SetAvatar) ActionName() string          { return "SET_AVATAR" }
func (SetThoughtStatus) ActionName() string   { return "SET_THOUGHT_STATUS" }
func (SetUserID) ActionName() string          { return "SET_USER_ID" }
func (CompleteDailyTasks) ActionName() string { return "COMPLETE_DAILY_TASKS" }
func (LoadSnapshot) ActionName() string       { return "LOAD_SNAPSHOT" }
