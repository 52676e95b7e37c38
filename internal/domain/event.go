package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventUserRegistered   EventType = "user.registered"
	EventCharacterEvolved EventType = "character.evolved"
	EventItemPurchased    EventType = "item.purchased"
	EventRewardClaimed    EventType = "reward.claimed"
	EventReferralUsed     EventType = "referral.used"
	EventTournamentJoined EventType = "tournament.joined"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateUser       AggregateType = "user"
	AggregateCharacter  AggregateType = "character"
	AggregateStore      AggregateType = "store"
	AggregateReferral   AggregateType = "referral"
	AggregateTournament AggregateType = "tournament"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	ID            int64           `json:"-"`
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Topic is the Kafka topic an outbox event is published to.
func (d OutboxDraft) Topic() string {
	return TopicFor(d.EventType)
}

// TopicFor builds the Kafka topic for an event type.
func TopicFor(evt EventType) string {
	return "pawtap." + string(evt)
}
