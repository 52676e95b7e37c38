package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pawtap/server/internal/auth"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/service"
)

// fakeGame returns err from every call and records the arguments it saw.
type fakeGame struct {
	err   error
	state domain.PlayerState
	items []domain.StoreItem

	userID       uuid.UUID
	itemID       uuid.UUID
	purchaseKey  string
	avatar       string
	thought      string
	code         string
	lang         string
	readID       uuid.UUID
	tournamentID uuid.UUID
	taps         int
}

func (f *fakeGame) State(_ context.Context, id uuid.UUID) (service.StateView, error) {
	f.userID = id
	return service.StateView{State: f.state, Revision: 3, Visual: game.VisualIdle}, f.err
}

func (f *fakeGame) Tap(_ context.Context, id uuid.UUID) (game.TapResult, error) {
	f.userID = id
	f.taps++
	if f.err != nil {
		return game.TapResult{}, f.err
	}
	return game.TapResult{Points: 1, Multiplier: 1, State: f.state, Visual: game.VisualIdle}, nil
}

func (f *fakeGame) Feed(_ context.Context, id uuid.UUID) (domain.PlayerState, error) {
	f.userID = id
	return f.state, f.err
}

func (f *fakeGame) Play(_ context.Context, id uuid.UUID) (domain.PlayerState, error) {
	f.userID = id
	return f.state, f.err
}

func (f *fakeGame) SetAvatar(_ context.Context, _ uuid.UUID, url string) (domain.PlayerState, error) {
	f.avatar = url
	return f.state, f.err
}

func (f *fakeGame) SetThought(_ context.Context, _ uuid.UUID, text string) (domain.PlayerState, error) {
	f.thought = text
	return f.state, f.err
}

func (f *fakeGame) StoreItems(context.Context) ([]domain.StoreItem, error) {
	if f.items == nil {
		return []domain.StoreItem{}, f.err
	}
	return f.items, f.err
}

func (f *fakeGame) Purchase(_ context.Context, userID, itemID uuid.UUID, key string) (service.PurchaseResult, error) {
	f.userID, f.itemID, f.purchaseKey = userID, itemID, key
	return service.PurchaseResult{Purchase: domain.Purchase{UserID: userID, ItemID: itemID}, State: f.state}, f.err
}

func (f *fakeGame) DailyBonus(context.Context, uuid.UUID) (domain.DailyBonusStatus, error) {
	return domain.DailyBonusStatus{Available: true, Streak: 1, NextAmount: 50}, f.err
}

func (f *fakeGame) ClaimDailyBonus(_ context.Context, id uuid.UUID) (service.BonusClaim, error) {
	return service.BonusClaim{Bonus: domain.DailyBonus{UserID: id, Streak: 1, LastAmount: 50}, State: f.state}, f.err
}

func (f *fakeGame) Referrals(context.Context, uuid.UUID) (domain.ReferralSummary, error) {
	return domain.ReferralSummary{}, f.err
}

func (f *fakeGame) GenerateReferralCode(_ context.Context, id uuid.UUID) (domain.ReferralLink, error) {
	return domain.ReferralLink{Code: "ABCD1234", UserID: id}, f.err
}

func (f *fakeGame) UseReferral(_ context.Context, id uuid.UUID, code string) (domain.ReferralUse, error) {
	f.userID, f.code = id, code
	return domain.ReferralUse{Code: code, InviteeID: id, InviteeReward: 100}, f.err
}

func (f *fakeGame) Tournaments(context.Context) ([]domain.Tournament, error) {
	return []domain.Tournament{}, f.err
}

func (f *fakeGame) JoinTournament(_ context.Context, _ uuid.UUID, tournamentID uuid.UUID) (domain.PlayerState, error) {
	f.tournamentID = tournamentID
	return f.state, f.err
}

func (f *fakeGame) TournamentLeaderboard(_ context.Context, tournamentID uuid.UUID) ([]domain.TournamentEntry, error) {
	f.tournamentID = tournamentID
	return []domain.TournamentEntry{}, f.err
}

func (f *fakeGame) Leaderboard(context.Context) ([]domain.LeaderboardEntry, error) {
	return []domain.LeaderboardEntry{}, f.err
}

func (f *fakeGame) Rank(_ context.Context, id uuid.UUID) (domain.LeaderboardEntry, error) {
	return domain.LeaderboardEntry{UserID: id, Rank: 7}, f.err
}

func (f *fakeGame) Phrases(_ context.Context, _ uuid.UUID, lang string) ([]domain.Phrase, error) {
	f.lang = lang
	return []domain.Phrase{}, f.err
}

func (f *fakeGame) Notifications(context.Context, uuid.UUID) ([]domain.NotificationItem, error) {
	return []domain.NotificationItem{}, f.err
}

func (f *fakeGame) MarkNotificationRead(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	f.readID = id
	return f.err
}

// asPlayer injects player claims the way auth.AuthenticatePlayer does.
func asPlayer(id uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()},
				Realm:            auth.RealmPlayer,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// gameRouter mounts the game routes behind asPlayer.
func gameRouter(h *GameHandler, player uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(asPlayer(player))
	r.Get("/game/state", h.State)
	r.Post("/game/tap", h.Tap)
	r.Post("/game/feed", h.Feed)
	r.Post("/game/play", h.Play)
	r.Post("/game/avatar", h.SetAvatar)
	r.Post("/game/thought", h.SetThought)
	r.Get("/store/items", h.StoreItems)
	r.Post("/store/items/{id}/purchase", h.Purchase)
	r.Get("/daily-bonus", h.DailyBonus)
	r.Post("/daily-bonus", h.ClaimDailyBonus)
	r.Get("/notifications", h.Notifications)
	r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	r.Get("/referrals", h.Referrals)
	r.Post("/referrals/code", h.GenerateReferralCode)
	r.Post("/referrals/use", h.UseReferral)
	r.Get("/tournaments", h.Tournaments)
	r.Post("/tournaments/{id}/join", h.JoinTournament)
	r.Get("/tournaments/{id}/leaderboard", h.TournamentLeaderboard)
	r.Get("/leaderboard", h.Leaderboard)
	r.Get("/leaderboard/me", h.Rank)
	r.Get("/phrases", h.Phrases)
	return r
}
