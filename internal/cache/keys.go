package cache

import "fmt"

// Key builders shared by the adapters so invalidation hits the same entries.

func CharacterKey(userID string) string     { return "character:" + userID }
func UserKey(userID string) string          { return "user:" + userID }
func NotificationsKey(userID string) string { return "notifications:" + userID }
func ReferralKey(userID string) string      { return "referral:" + userID }
func DailyBonusKey(userID string) string    { return "daily_bonus:" + userID }
func RankKey(userID string) string          { return "rank:" + userID }
func StoreItemsKey() string                 { return "store:items" }
func TournamentsKey() string                { return "tournaments:active" }
func LeaderboardKey(limit int) string       { return fmt.Sprintf("leaderboard:%d", limit) }

func TournamentBoardKey(tournamentID string) string {
	return "tournament:" + tournamentID + ":leaderboard"
}

func PhrasesKey(characterType, language string) string {
	return "phrases:" + characterType + ":" + language
}
