package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/repository"
)

// CharacterAdapter loads and persists character snapshots.
type CharacterAdapter struct {
	Base
	chars  repository.CharacterRepository
	outbox repository.OutboxRepository
	rules  game.Rules
}

// NewCharacterAdapter creates a CharacterAdapter.
func NewCharacterAdapter(b Base, chars repository.CharacterRepository, outbox repository.OutboxRepository, rules game.Rules) *CharacterAdapter {
	return &CharacterAdapter{Base: b, chars: chars, outbox: outbox, rules: rules}
}

// Load returns the user's character, creating it on first use. The fallback is a fresh
// start state at revision zero.
func (a *CharacterAdapter) Load(ctx context.Context, userID uuid.UUID, force bool) (domain.Character, error) {
	fallback := domain.Character{
		UserID: userID,
		State:  a.rules.NewPlayerState(userID.String(), domain.CharacterCat),
	}
	return readThrough(ctx, a.Base, cache.CharacterKey(userID.String()), CharacterTTL, force, fallback,
		func(ctx context.Context) (domain.Character, error) {
			c, err := a.chars.FindOrCreate(ctx, a.Pool, userID, fallback.State)
			if err != nil {
				return domain.Character{}, err
			}
			if c == nil {
				return domain.Character{}, fmt.Errorf("character %s missing after insert", userID)
			}
			return *c, nil
		})
}

// Save writes a snapshot taken at revision. applied is false when the stored row is
// already newer; the cached copy is dropped in that case.
func (a *CharacterAdapter) Save(ctx context.Context, userID uuid.UUID, state domain.PlayerState, revision int64) (bool, error) {
	key := cache.CharacterKey(userID.String())
	id := a.Seq.Next(key)

	applied, err := a.chars.SaveSnapshot(ctx, a.Pool, userID, state, revision)
	if err != nil {
		return false, a.fail(key, err)
	}
	if !applied {
		a.invalidate(ctx, key)
		return false, nil
	}
	a.store(ctx, key, id, domain.Character{UserID: userID, State: state, Revision: revision}, CharacterTTL)
	return true, nil
}

// Credit adds coins to a character with no live session. They stay pending until a
// session claims them, and snapshot writes keep them meanwhile.
func (a *CharacterAdapter) Credit(ctx context.Context, userID uuid.UUID, amount int64) error {
	if err := a.chars.AddCoins(ctx, a.Pool, userID, amount); err != nil {
		return a.fail(cache.CharacterKey(userID.String()), err)
	}
	return nil
}

// ClaimCredits takes the pending credits for the caller's live state. It returns 0
// alongside ErrUnavailable when the database cannot be reached.
func (a *CharacterAdapter) ClaimCredits(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := a.chars.TakePendingCoins(ctx, a.Pool, userID)
	if err != nil {
		return 0, a.fail(cache.CharacterKey(userID.String()), err)
	}
	return n, nil
}

// RecordEvolution queues the evolved event for Kafka.
func (a *CharacterAdapter) RecordEvolution(ctx context.Context, userID uuid.UUID, characterType domain.CharacterType, level int) error {
	draft := domain.NewCharacterEvolvedEvent(userID, characterType, level)
	if err := a.outbox.Insert(ctx, a.Pool, draft); err != nil {
		return a.fail("outbox", err)
	}
	return nil
}
