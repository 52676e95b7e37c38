package handler

import (
	"context"
	"net/http"

	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/service"
)

// AdminAPI is the back-office surface.
type AdminAPI interface {
	SaveItem(ctx context.Context, item domain.StoreItem) (domain.StoreItem, error)
	Broadcast(ctx context.Context, in service.BroadcastInput) (int64, error)
	CreateTournament(ctx context.Context, t domain.Tournament) (domain.Tournament, error)
}

// AdminHandler handles the admin write endpoints.
type AdminHandler struct {
	admin AdminAPI
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin AdminAPI) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// SaveItem handles POST /admin/items.
func (h *AdminHandler) SaveItem(w http.ResponseWriter, r *http.Request) {
	var item domain.StoreItem
	if err := DecodeJSON(r, &item); err != nil {
		badBody(w)
		return
	}
	saved, err := h.admin.SaveItem(r.Context(), item)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, saved)
}

// Broadcast handles POST /admin/notifications/broadcast.
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var in service.BroadcastInput
	if err := DecodeJSON(r, &in); err != nil {
		badBody(w)
		return
	}
	n, err := h.admin.Broadcast(r.Context(), in)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, map[string]int64{"recipients": n})
}

// CreateTournament handles POST /admin/tournaments.
func (h *AdminHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	var t domain.Tournament
	if err := DecodeJSON(r, &t); err != nil {
		badBody(w)
		return
	}
	created, err := h.admin.CreateTournament(r.Context(), t)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, created)
}
