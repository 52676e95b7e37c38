package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
)

type notificationRepo struct{}

// NewNotificationRepository returns a pgx-backed NotificationRepository.
func NewNotificationRepository() NotificationRepository {
	return &notificationRepo{}
}

func (r *notificationRepo) ListByUser(ctx context.Context, db DBTX, userID uuid.UUID, limit int) ([]domain.NotificationItem, error) {
	rows, err := db.Query(ctx, `
		SELECT id, user_id, kind, title, body, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := []domain.NotificationItem{}
	for rows.Next() {
		var n domain.NotificationItem
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *notificationRepo) Insert(ctx context.Context, db DBTX, n *domain.NotificationItem) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		n.ID, n.UserID, n.Kind, n.Title, n.Body,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, db DBTX, userID, id uuid.UUID) error {
	tag, err := db.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("notification", id.String())
	}
	return nil
}

func (r *notificationRepo) Broadcast(ctx context.Context, db DBTX, kind, title, body string) (int64, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO notifications (user_id, kind, title, body)
		SELECT id, $1, $2, $3 FROM users`, kind, title, body)
	if err != nil {
		return 0, fmt.Errorf("broadcast notification: %w", err)
	}
	return tag.RowsAffected(), nil
}
