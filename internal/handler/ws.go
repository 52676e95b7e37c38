package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/infra"
	"github.com/pawtap/server/internal/service"
)

// RealtimeServer upgrades and serves a player's WebSocket.
type RealtimeServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, playerID string, hello *infra.WSMessage, inbound infra.WSInbound) error
}

// WSHandler serves GET /ws. The first message is the current state; clients may
// send {"event":"tap"} and receive a tap_result.
type WSHandler struct {
	hub    RealtimeServer
	game   GameAPI
	logger *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub RealtimeServer, game GameAPI, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, game: game, logger: logger}
}

// Serve handles GET /ws.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, err := playerID(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	// Opens the session so state pushes reach this connection.
	view, err := h.game.State(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}

	hello := &infra.WSMessage{Event: service.EventState, Data: view}
	if err := h.hub.ServeWS(w, r, id.String(), hello, h.inbound(id)); err != nil {
		h.logger.Warn("ws upgrade failed", "user_id", id, "error", err)
	}
}

func (h *WSHandler) inbound(userID uuid.UUID) infra.WSInbound {
	return func(ctx context.Context, event string, _ json.RawMessage) *infra.WSMessage {
		switch event {
		case "tap":
			res, err := h.game.Tap(ctx, userID)
			if err != nil {
				return wsError(err)
			}
			return &infra.WSMessage{Event: "tap_result", Data: res}
		case "state":
			view, err := h.game.State(ctx, userID)
			if err != nil {
				return wsError(err)
			}
			return &infra.WSMessage{Event: service.EventState, Data: view}
		default:
			return wsError(domain.ErrValidation("unknown event: " + event))
		}
	}
}

func wsError(err error) *infra.WSMessage {
	code, msg := domain.CodeInternal, "internal server error"
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		code, msg = appErr.Code, appErr.Message
	}
	return &infra.WSMessage{Event: "error", Data: map[string]string{"code": code, "message": msg}}
}
