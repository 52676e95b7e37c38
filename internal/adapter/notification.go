package adapter

import (
	"context"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

const notificationPageSize = 50

// NotificationAdapter reads and writes the notification inbox.
type NotificationAdapter struct {
	Base
	repo repository.NotificationRepository
}

// NewNotificationAdapter creates a NotificationAdapter.
func NewNotificationAdapter(b Base, repo repository.NotificationRepository) *NotificationAdapter {
	return &NotificationAdapter{Base: b, repo: repo}
}

// List returns the newest notifications for a user.
func (a *NotificationAdapter) List(ctx context.Context, userID uuid.UUID, force bool) ([]domain.NotificationItem, error) {
	return readThrough(ctx, a.Base, cache.NotificationsKey(userID.String()), NotificationsTTL, force, []domain.NotificationItem{},
		func(ctx context.Context) ([]domain.NotificationItem, error) {
			return a.repo.ListByUser(ctx, a.Pool, userID, notificationPageSize)
		})
}

// MarkRead flags one notification as read.
func (a *NotificationAdapter) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := a.repo.MarkRead(ctx, a.Pool, userID, id); err != nil {
		return a.fail("notifications", err)
	}
	a.invalidate(ctx, cache.NotificationsKey(userID.String()))
	return nil
}

// Push stores a notification for one user.
func (a *NotificationAdapter) Push(ctx context.Context, n *domain.NotificationItem) error {
	if err := a.repo.Insert(ctx, a.Pool, n); err != nil {
		return a.fail("notifications", err)
	}
	a.invalidate(ctx, cache.NotificationsKey(n.UserID.String()))
	return nil
}

// Broadcast sends a notification to every user. Cached inboxes pick it up when their
// short TTL runs out.
func (a *NotificationAdapter) Broadcast(ctx context.Context, kind, title, body string) (int64, error) {
	n, err := a.repo.Broadcast(ctx, a.Pool, kind, title, body)
	if err != nil {
		return 0, a.fail("notifications", err)
	}
	return n, nil
}
