package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/guard"
	"github.com/pawtap/server/internal/service"
)

// Authenticator issues player and admin tokens.
type Authenticator interface {
	TelegramLogin(ctx context.Context, initData string) (*service.AuthResult, error)
	AdminLogin(ctx context.Context, input service.AdminLoginInput) (*service.AdminAuthResult, error)
}

// ReferralApplier redeems the referral code a new player arrived with.
type ReferralApplier interface {
	UseReferral(ctx context.Context, userID uuid.UUID, code string) (domain.ReferralUse, error)
}

// AuthHandler handles the Telegram and admin login endpoints.
type AuthHandler struct {
	auth      Authenticator
	referrals ReferralApplier
	limiter   *guard.RateLimiter
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. limiter is keyed by client IP.
func NewAuthHandler(auth Authenticator, referrals ReferralApplier, limiter *guard.RateLimiter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, referrals: referrals, limiter: limiter, logger: logger}
}

type telegramLoginRequest struct {
	InitData string `json:"init_data"`
}

// TelegramLogin handles POST /auth/telegram.
func (h *AuthHandler) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	var req telegramLoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		badBody(w)
		return
	}

	result, err := h.auth.TelegramLogin(r.Context(), req.InitData)
	if err != nil {
		RespondError(w, err)
		return
	}

	// Deep links carry the inviter's code as start_param.
	if result.Created && result.StartParam != "" && h.referrals != nil {
		if _, err := h.referrals.UseReferral(r.Context(), result.User.ID, result.StartParam); err != nil {
			h.logger.Warn("start_param referral not applied",
				"user_id", result.User.ID,
				"code", result.StartParam,
				"error", err,
			)
		}
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	RespondJSON(w, status, result)
}

// AdminLogin handles POST /admin/auth/login.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r) {
		return
	}
	var input service.AdminLoginInput
	if err := DecodeJSON(r, &input); err != nil {
		badBody(w)
		return
	}

	result, err := h.auth.AdminLogin(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) allow(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	res := h.limiter.Check(r.Context(), "login:"+ClientIP(r))
	if !res.Allowed {
		if secs := int(res.RetryAfter.Seconds()); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		RespondError(w, domain.ErrRateLimited(res.Reason))
		return false
	}
	return true
}
