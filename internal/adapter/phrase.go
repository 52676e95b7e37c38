package adapter

import (
	"context"

	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

const defaultLanguage = "en"

// PhraseAdapter serves thought-bubble phrases. They rarely change, so they are cached
// for hours rather than minutes.
type PhraseAdapter struct {
	Base
	repo repository.PhraseRepository
}

// NewPhraseAdapter creates a PhraseAdapter.
func NewPhraseAdapter(b Base, repo repository.PhraseRepository) *PhraseAdapter {
	return &PhraseAdapter{Base: b, repo: repo}
}

// List returns phrases for a character type in language, falling back to English
// when the language has none.
func (a *PhraseAdapter) List(ctx context.Context, characterType domain.CharacterType, language string, force bool) ([]domain.Phrase, error) {
	if language == "" {
		language = defaultLanguage
	}
	phrases, err := a.list(ctx, characterType, language, force)
	if err == nil && len(phrases) == 0 && language != defaultLanguage {
		return a.list(ctx, characterType, defaultLanguage, force)
	}
	return phrases, err
}

func (a *PhraseAdapter) list(ctx context.Context, characterType domain.CharacterType, language string, force bool) ([]domain.Phrase, error) {
	key := cache.PhrasesKey(string(characterType), language)
	return readThrough(ctx, a.Base, key, PhrasesTTL, force, []domain.Phrase{},
		func(ctx context.Context) ([]domain.Phrase, error) {
			return a.repo.List(ctx, a.Pool, characterType, language)
		})
}
