package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type actionRepo struct{}

// NewActionRepository returns a pgx-backed ActionRepository.
func NewActionRepository() ActionRepository {
	return &actionRepo{}
}

// Track backs the track_user_action call.
func (r *actionRepo) Track(ctx context.Context, db DBTX, userID uuid.UUID, action string, metadata json.RawMessage) error {
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	_, err := db.Exec(ctx,
		`INSERT INTO user_actions (user_id, action, metadata) VALUES ($1, $2, $3)`,
		userID, action, metadata)
	if err != nil {
		return fmt.Errorf("track user action: %w", err)
	}
	return nil
}
