package repository

import (
	"context"
	"fmt"

	"github.com/pawtap/server/internal/domain"
)

type phraseRepo struct{}

// NewPhraseRepository returns a pgx-backed PhraseRepository.
func NewPhraseRepository() PhraseRepository {
	return &phraseRepo{}
}

func (r *phraseRepo) List(ctx context.Context, db DBTX, characterType domain.CharacterType, language string) ([]domain.Phrase, error) {
	rows, err := db.Query(ctx, `
		SELECT id, character_type, language, text
		FROM phrases
		WHERE character_type = $1 AND language = $2
		ORDER BY id`, string(characterType), language)
	if err != nil {
		return nil, fmt.Errorf("list phrases: %w", err)
	}
	defer rows.Close()

	out := []domain.Phrase{}
	for rows.Next() {
		var p domain.Phrase
		var ct string
		if err := rows.Scan(&p.ID, &ct, &p.Language, &p.Text); err != nil {
			return nil, fmt.Errorf("scan phrase: %w", err)
		}
		p.CharacterType = domain.CharacterType(ct)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *phraseRepo) Upsert(ctx context.Context, db DBTX, p *domain.Phrase) error {
	err := db.QueryRow(ctx, `
		INSERT INTO phrases (character_type, language, text) VALUES ($1, $2, $3)
		ON CONFLICT (character_type, language, text) DO UPDATE SET text = EXCLUDED.text
		RETURNING id`, string(p.CharacterType), p.Language, p.Text).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert phrase: %w", err)
	}
	return nil
}
