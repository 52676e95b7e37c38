package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newDraft(agg AggregateType, evt EventType, userID uuid.UUID, payload interface{}) OutboxDraft {
	body, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   userID.String(),
		EventType:     evt,
		PartitionKey:  userID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       body,
		OccurredAt:    time.Now(),
	}
}

// NewUserRegisteredEvent is emitted the first time a Telegram user logs in.
func NewUserRegisteredEvent(u *User) OutboxDraft {
	return newDraft(AggregateUser, EventUserRegistered, u.ID, map[string]interface{}{
		"user_id":     u.ID.String(),
		"telegram_id": u.TelegramID,
		"username":    u.Username,
	})
}

// NewCharacterEvolvedEvent is emitted when a pet reaches a new level.
func NewCharacterEvolvedEvent(userID uuid.UUID, characterType CharacterType, level int) OutboxDraft {
	return newDraft(AggregateCharacter, EventCharacterEvolved, userID, map[string]interface{}{
		"user_id":        userID.String(),
		"character_type": characterType,
		"level":          level,
	})
}

// NewItemPurchasedEvent is emitted after a store purchase is recorded.
func NewItemPurchasedEvent(p Purchase) OutboxDraft {
	return newDraft(AggregateStore, EventItemPurchased, p.UserID, map[string]interface{}{
		"user_id": p.UserID.String(),
		"item_id": p.ItemID.String(),
		"price":   p.Price,
	})
}

// NewRewardClaimedEvent is emitted when a daily bonus or other reward is credited.
func NewRewardClaimedEvent(userID uuid.UUID, source string, rewardType RewardType, amount int64) OutboxDraft {
	return newDraft(AggregateUser, EventRewardClaimed, userID, map[string]interface{}{
		"user_id":     userID.String(),
		"source":      source,
		"reward_type": rewardType,
		"amount":      amount,
	})
}

// NewReferralUsedEvent is emitted when an invitee redeems a referral code.
func NewReferralUsedEvent(use ReferralUse) OutboxDraft {
	return newDraft(AggregateReferral, EventReferralUsed, use.ReferrerID, map[string]interface{}{
		"code":            use.Code,
		"referrer_id":     use.ReferrerID.String(),
		"invitee_id":      use.InviteeID.String(),
		"referrer_reward": use.ReferrerReward,
	})
}

// NewTournamentJoinedEvent is emitted when a user enters a tournament.
func NewTournamentJoinedEvent(userID, tournamentID uuid.UUID) OutboxDraft {
	return newDraft(AggregateTournament, EventTournamentJoined, userID, map[string]string{
		"user_id":       userID.String(),
		"tournament_id": tournamentID.String(),
	})
}
