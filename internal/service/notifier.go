package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
)

// NotificationSink stores one user's notification.
type NotificationSink interface {
	Push(ctx context.Context, n *domain.NotificationItem) error
}

// EventNotifier turns game events into inbox notifications.
type EventNotifier struct {
	sink   NotificationSink
	logger *slog.Logger
}

// NewEventNotifier creates an EventNotifier.
func NewEventNotifier(sink NotificationSink, logger *slog.Logger) *EventNotifier {
	return &EventNotifier{sink: sink, logger: logger}
}

// Topics lists the Kafka topics Handle understands.
func (n *EventNotifier) Topics() []string {
	return []string{
		domain.TopicFor(domain.EventCharacterEvolved),
		domain.TopicFor(domain.EventReferralUsed),
	}
}

type evolvedPayload struct {
	UserID        uuid.UUID            `json:"user_id"`
	CharacterType domain.CharacterType `json:"character_type"`
	Level         int                  `json:"level"`
}

type referralPayload struct {
	ReferrerID     uuid.UUID `json:"referrer_id"`
	ReferrerReward int64     `json:"referrer_reward"`
}

// Handle stores the notification for one event. Other event types are ignored.
// A payload that cannot be decoded returns a VALIDATION_ERROR and is not worth retrying.
func (n *EventNotifier) Handle(ctx context.Context, eventType domain.EventType, payload json.RawMessage) error {
	var item *domain.NotificationItem

	switch eventType {
	case domain.EventCharacterEvolved:
		var p evolvedPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.UserID == uuid.Nil {
			return domain.ErrValidation("malformed character.evolved payload")
		}
		item = &domain.NotificationItem{
			UserID: p.UserID,
			Kind:   "evolution",
			Title:  fmt.Sprintf("Your %s evolved!", domain.ParseCharacterType(string(p.CharacterType))),
			Body:   fmt.Sprintf("Level %d reached. Keep tapping!", p.Level),
		}
	case domain.EventReferralUsed:
		var p referralPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.ReferrerID == uuid.Nil {
			return domain.ErrValidation("malformed referral.used payload")
		}
		item = &domain.NotificationItem{
			UserID: p.ReferrerID,
			Kind:   "referral",
			Title:  "A friend joined!",
			Body:   fmt.Sprintf("You earned %d coins for the invite.", p.ReferrerReward),
		}
	default:
		return nil
	}

	if err := n.sink.Push(ctx, item); err != nil {
		return fmt.Errorf("push %s notification: %w", eventType, err)
	}
	n.logger.Info("notification stored", "user_id", item.UserID, "kind", item.Kind)
	return nil
}
