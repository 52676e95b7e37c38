// Package game holds the player state model: a pure reducer, the store that serializes
// dispatches, the tap/evolution loop and the energy regeneration timer.
package game

import (
	"fmt"
	"time"

	"github.com/pawtap/server/internal/domain"
)

// ComboConfig tunes the tap combo multiplier.
type ComboConfig struct {
	Window time.Duration `yaml:"window"` // max gap between taps that still grows the combo
	Step   float64       `yaml:"step"`
	Decay  float64       `yaml:"decay"`
	Floor  float64       `yaml:"floor"`
	Cap    float64       `yaml:"cap"`
}

// Rules are the tunables shared by every session.
type Rules struct {
	LevelCap       int           `yaml:"level_cap"`
	RequiredTaps   []int         `yaml:"required_taps"` // index 0 is the threshold for leaving level 1
	StartEnergy    int           `yaml:"start_energy"`
	MaxEnergy      int           `yaml:"max_energy"`
	RegenRate      int           `yaml:"regen_rate"`
	RegenInterval  time.Duration `yaml:"regen_interval"`
	StartHunger    int           `yaml:"start_hunger"`
	StartHappiness int           `yaml:"start_happiness"`
	EvolutionDelay time.Duration `yaml:"evolution_delay"`
	Combo          ComboConfig   `yaml:"combo"`
}

// DefaultRules returns the values observed in the live game.
func DefaultRules() Rules {
	return Rules{
		LevelCap:       2,
		RequiredTaps:   []int{100},
		StartEnergy:    100,
		MaxEnergy:      100,
		RegenRate:      1,
		RegenInterval:  3 * time.Minute,
		StartHunger:    50,
		StartHappiness: 50,
		EvolutionDelay: 2 * time.Second,
		Combo: ComboConfig{
			Window: 500 * time.Millisecond,
			Step:   0.1,
			Decay:  0.2,
			Floor:  1.0,
			Cap:    3.0,
		},
	}
}

// RequiredFor returns the taps needed to leave the given level. Levels past the end of
// RequiredTaps reuse the last threshold.
func (r Rules) RequiredFor(level int) int {
	if len(r.RequiredTaps) == 0 {
		return 0
	}
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.RequiredTaps) {
		idx = len(r.RequiredTaps) - 1
	}
	return r.RequiredTaps[idx]
}

// Validate rejects rule sets that would break state invariants.
func (r Rules) Validate() error {
	if r.LevelCap < 1 {
		return fmt.Errorf("level_cap must be at least 1, got %d", r.LevelCap)
	}
	if r.MaxEnergy <= 0 {
		return fmt.Errorf("max_energy must be positive, got %d", r.MaxEnergy)
	}
	if r.StartEnergy < 0 || r.StartEnergy > r.MaxEnergy {
		return fmt.Errorf("start_energy must be within [0, %d], got %d", r.MaxEnergy, r.StartEnergy)
	}
	if r.RegenRate < 0 {
		return fmt.Errorf("regen_rate must not be negative, got %d", r.RegenRate)
	}
	if r.RegenInterval <= 0 {
		return fmt.Errorf("regen_interval must be positive")
	}
	for i, n := range r.RequiredTaps {
		if n <= 0 {
			return fmt.Errorf("required_taps[%d] must be positive, got %d", i, n)
		}
	}
	c := r.Combo
	if c.Floor <= 0 || c.Cap < c.Floor {
		return fmt.Errorf("combo floor/cap out of order: floor=%v cap=%v", c.Floor, c.Cap)
	}
	if c.Step < 0 || c.Decay < 0 {
		return fmt.Errorf("combo step and decay must not be negative")
	}
	return nil
}

// NewPlayerState builds the start-of-game state for a player.
func (r Rules) NewPlayerState(userID string, characterType domain.CharacterType) domain.PlayerState {
	return domain.PlayerState{
		Energy:        domain.Energy{Current: r.StartEnergy, Max: r.MaxEnergy, RegenRate: r.RegenRate},
		Progress:      domain.Progress{Current: 0, Required: r.RequiredFor(1)},
		Level:         domain.Level{Current: 1},
		Profile:       domain.Profile{Hunger: r.StartHunger, Happiness: r.StartHappiness},
		CharacterType: domain.ParseCharacterType(string(characterType)),
		UserID:        userID,
	}
}
