package game

import (
	"fmt"

	"github.com/pawtap/server/internal/domain"
)

const maxThoughtLen = 140

// Reduce applies a to s and returns the next state. It performs no I/O. A rejected action
// returns s unchanged together with a *domain.AppError describing why.
func Reduce(s domain.PlayerState, a Action, r Rules) (domain.PlayerState, error) {
	switch a := a.(type) {
	case Tap:
		if a.Points <= 0 {
			return s, domain.ErrValidation(fmt.Sprintf("tap points must be positive, got %d", a.Points))
		}
		if s.Energy.Current <= 0 {
			return s, domain.ErrEnergyEmpty()
		}
		s.Energy.Current--
		s.Coins += int64(a.Points)
		s.Progress.Current++
		return s, nil

	case RegenEnergy:
		if a.Amount < 0 {
			return s, domain.ErrValidation(fmt.Sprintf("regen amount must not be negative, got %d", a.Amount))
		}
		s.Energy.Current = min(s.Energy.Max, s.Energy.Current+a.Amount)
		return s, nil

	case Evolve:
		if s.Level.Current >= r.LevelCap {
			return s, domain.ErrMaxLevel(r.LevelCap)
		}
		s.Level.Current++
		s.Progress.Current = 0
		s.Progress.Required = r.RequiredFor(s.Level.Current)
		return s, nil

	case SetLevel:
		if a.Level < 1 || a.Level > r.LevelCap {
			return s, domain.ErrValidation(fmt.Sprintf("level must be within [1, %d], got %d", r.LevelCap, a.Level))
		}
		s.Level.Current = a.Level
		s.Progress.Required = r.RequiredFor(a.Level)
		return s, nil

	case UpdateEnergyMax:
		if a.Max <= 0 {
			return s, domain.ErrValidation(fmt.Sprintf("energy max must be positive, got %d", a.Max))
		}
		s.Energy.Max = a.Max
		s.Energy.Current = min(s.Energy.Current, a.Max)
		return s, nil

	case BuyItem:
		if a.Price < 0 {
			return s, domain.ErrValidation(fmt.Sprintf("price must not be negative, got %d", a.Price))
		}
		if s.Coins < a.Price {
			return s, domain.ErrInsufficientCoins(s.Coins, a.Price)
		}
		s.Coins -= a.Price
		return s, nil

	case ClaimReward:
		if err := domain.ValidatePositiveAmount(a.Amount); err != nil {
			return s, domain.ErrValidation(err.Error())
		}
		switch a.Type {
		case domain.RewardCoins:
			s.Coins += a.Amount
		case domain.RewardEnergy:
			s.Energy.Current = int(min(int64(s.Energy.Max), int64(s.Energy.Current)+a.Amount))
		default:
			return s, domain.ErrValidation(fmt.Sprintf("unknown reward type %q", a.Type))
		}
		return s, nil

	case UpdateCharacter:
		if a.Hunger != nil {
			s.Profile.Hunger = *a.Hunger
		}
		if a.Happiness != nil {
			s.Profile.Happiness = *a.Happiness
		}
		s.Profile.Hunger = domain.ClampStat(s.Profile.Hunger + a.HungerDelta)
		s.Profile.Happiness = domain.ClampStat(s.Profile.Happiness + a.HappinessDelta)
		if a.CharacterType != "" {
			s.CharacterType = domain.ParseCharacterType(string(a.CharacterType))
		}
		return s, nil

	case SetAvatar:
		s.Profile.Avatar = a.URL
		return s, nil

	case SetThoughtStatus:
		if len(a.Text) > maxThoughtLen {
			return s, domain.ErrValidation(fmt.Sprintf("thought status longer than %d bytes", maxThoughtLen))
		}
		s.Profile.ThoughtStatus = a.Text
		return s, nil

	case SetUserID:
		s.UserID = a.ID
		return s, nil

	case CompleteDailyTasks:
		s.DailyTasks.CompletedToday = a.Completed
		return s, nil

	case LoadSnapshot:
		next := a.State.Normalize()
		if next.Level.Current > r.LevelCap {
			next.Level.Current = r.LevelCap
		}
		if next.Progress.Required <= 0 {
			next.Progress.Required = r.RequiredFor(next.Level.Current)
		}
		if next.UserID == "" {
			next.UserID = s.UserID
		}
		return next, nil

	default:
		return s, domain.ErrValidation(fmt.Sprintf("unknown action %T", a))
	}
}
