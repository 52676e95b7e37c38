package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/auth"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/service"
)

// GameAPI is the player-facing game surface served over HTTP.
type GameAPI interface {
	State(ctx context.Context, userID uuid.UUID) (service.StateView, error)
	Tap(ctx context.Context, userID uuid.UUID) (game.TapResult, error)
	Feed(ctx context.Context, userID uuid.UUID) (domain.PlayerState, error)
	Play(ctx context.Context, userID uuid.UUID) (domain.PlayerState, error)
	SetAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) (domain.PlayerState, error)
	SetThought(ctx context.Context, userID uuid.UUID, text string) (domain.PlayerState, error)
	StoreItems(ctx context.Context) ([]domain.StoreItem, error)
	Purchase(ctx context.Context, userID, itemID uuid.UUID, idempotencyKey string) (service.PurchaseResult, error)
	DailyBonus(ctx context.Context, userID uuid.UUID) (domain.DailyBonusStatus, error)
	ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (service.BonusClaim, error)
	Referrals(ctx context.Context, userID uuid.UUID) (domain.ReferralSummary, error)
	GenerateReferralCode(ctx context.Context, userID uuid.UUID) (domain.ReferralLink, error)
	UseReferral(ctx context.Context, userID uuid.UUID, code string) (domain.ReferralUse, error)
	Tournaments(ctx context.Context) ([]domain.Tournament, error)
	JoinTournament(ctx context.Context, userID, tournamentID uuid.UUID) (domain.PlayerState, error)
	TournamentLeaderboard(ctx context.Context, tournamentID uuid.UUID) ([]domain.TournamentEntry, error)
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
	Rank(ctx context.Context, userID uuid.UUID) (domain.LeaderboardEntry, error)
	Phrases(ctx context.Context, userID uuid.UUID, language string) ([]domain.Phrase, error)
	Notifications(ctx context.Context, userID uuid.UUID) ([]domain.NotificationItem, error)
	MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error
}

// GameHandler handles the authenticated player endpoints.
type GameHandler struct {
	game GameAPI
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(game GameAPI) *GameHandler {
	return &GameHandler{game: game}
}

func playerID(r *http.Request) (uuid.UUID, error) {
	id := auth.SubjectFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, domain.ErrUnauthorized("missing player identity")
	}
	return id, nil
}

func badBody(w http.ResponseWriter) {
	RespondJSON(w, http.StatusBadRequest, map[string]string{
		"code":    domain.CodeValidation,
		"message": "invalid request body",
	})
}

// playerAction wraps a handler that only needs the caller's id and returns a value.
func playerAction[T any](fn func(ctx context.Context, userID uuid.UUID) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := playerID(r)
		if err != nil {
			RespondError(w, err)
			return
		}
		out, err := fn(r.Context(), id)
		if err != nil {
			RespondError(w, err)
			return
		}
		RespondJSON(w, http.StatusOK, out)
	}
}

// playerRead is playerAction for cached reads that may be served degraded.
func playerRead[T any](fn func(ctx context.Context, userID uuid.UUID) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := playerID(r)
		if err != nil {
			RespondError(w, err)
			return
		}
		out, err := fn(r.Context(), id)
		RespondRead(w, out, err)
	}
}

// State handles GET /game/state.
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	playerAction(h.game.State)(w, r)
}

// Tap handles POST /game/tap.
func (h *GameHandler) Tap(w http.ResponseWriter, r *http.Request) {
	playerAction(h.game.Tap)(w, r)
}

// Feed handles POST /game/feed.
func (h *GameHandler) Feed(w http.ResponseWriter, r *http.Request) {
	playerAction(h.game.Feed)(w, r)
}

// Play handles POST /game/play.
func (h *GameHandler) Play(w http.ResponseWriter, r *http.Request) {
	playerAction(h.game.Play)(w, r)
}

type avatarRequest struct {
	URL string `json:"url"`
}

// SetAvatar handles POST /game/avatar.
func (h *GameHandler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	playerAction(func(ctx context.Context, id uuid.UUID) (domain.PlayerState, error) {
		return h.game.SetAvatar(ctx, id, req.URL)
	})(w, r)
}

type thoughtRequest struct {
	Text string `json:"text"`
}

// SetThought handles POST /game/thought.
func (h *GameHandler) SetThought(w http.ResponseWriter, r *http.Request) {
	var req thoughtRequest
	if err := DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	playerAction(func(ctx context.Context, id uuid.UUID) (domain.PlayerState, error) {
		return h.game.SetThought(ctx, id, req.Text)
	})(w, r)
}

// StoreItems handles GET /store/items.
func (h *GameHandler) StoreItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.game.StoreItems(r.Context())
	RespondRead(w, items, err)
}

// Purchase handles POST /store/items/{id}/purchase. The Idempotency-Key header is optional.
func (h *GameHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	itemID, err := URLParamUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	playerAction(func(ctx context.Context, id uuid.UUID) (service.PurchaseResult, error) {
		return h.game.Purchase(ctx, id, itemID, key)
	})(w, r)
}

// DailyBonus handles GET /daily-bonus.
func (h *GameHandler) DailyBonus(w http.ResponseWriter, r *http.Request) {
	playerRead(h.game.DailyBonus)(w, r)
}

// ClaimDailyBonus handles POST /daily-bonus.
func (h *GameHandler) ClaimDailyBonus(w http.ResponseWriter, r *http.Request) {
	playerAction(h.game.ClaimDailyBonus)(w, r)
}

// Notifications handles GET /notifications.
func (h *GameHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	playerRead(h.game.Notifications)(w, r)
}

// MarkNotificationRead handles POST /notifications/{id}/read.
func (h *GameHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, err := playerID(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	id, err := URLParamUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.game.MarkNotificationRead(r.Context(), userID, id); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Referrals handles GET /referrals.
func (h *GameHandler) Referrals(w http.ResponseWriter, r *http.Request) {
	playerRead(h.game.Referrals)(w, r)
}

// GenerateReferralCode handles POST /referrals/code.
func (h *GameHandler) GenerateReferralCode(w http.ResponseWriter, r *http.Request) {
	playerAction(h.game.GenerateReferralCode)(w, r)
}

type referralRequest struct {
	Code string `json:"code"`
}

// UseReferral handles POST /referrals/use.
func (h *GameHandler) UseReferral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}
	playerAction(func(ctx context.Context, id uuid.UUID) (domain.ReferralUse, error) {
		return h.game.UseReferral(ctx, id, req.Code)
	})(w, r)
}

// Tournaments handles GET /tournaments.
func (h *GameHandler) Tournaments(w http.ResponseWriter, r *http.Request) {
	list, err := h.game.Tournaments(r.Context())
	RespondRead(w, list, err)
}

// JoinTournament handles POST /tournaments/{id}/join.
func (h *GameHandler) JoinTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := URLParamUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	playerAction(func(ctx context.Context, id uuid.UUID) (domain.PlayerState, error) {
		return h.game.JoinTournament(ctx, id, tournamentID)
	})(w, r)
}

// TournamentLeaderboard handles GET /tournaments/{id}/leaderboard.
func (h *GameHandler) TournamentLeaderboard(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := URLParamUUID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	entries, err := h.game.TournamentLeaderboard(r.Context(), tournamentID)
	RespondRead(w, entries, err)
}

// Leaderboard handles GET /leaderboard.
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.game.Leaderboard(r.Context())
	RespondRead(w, entries, err)
}

// Rank handles GET /leaderboard/me.
func (h *GameHandler) Rank(w http.ResponseWriter, r *http.Request) {
	playerRead(h.game.Rank)(w, r)
}

// Phrases handles GET /phrases?lang=xx.
func (h *GameHandler) Phrases(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	playerRead(func(ctx context.Context, id uuid.UUID) ([]domain.Phrase, error) {
		return h.game.Phrases(ctx, id, lang)
	})(w, r)
}
