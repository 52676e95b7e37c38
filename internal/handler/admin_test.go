package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/service"
	"github.com/stretchr/testify/assert"
)

type fakeAdmin struct {
	item      domain.StoreItem
	broadcast service.BroadcastInput
	err       error
}

func (f *fakeAdmin) SaveItem(_ context.Context, item domain.StoreItem) (domain.StoreItem, error) {
	f.item = item
	item.ID = uuid.New()
	return item, f.err
}

func (f *fakeAdmin) Broadcast(_ context.Context, in service.BroadcastInput) (int64, error) {
	f.broadcast = in
	return 12, f.err
}

func (f *fakeAdmin) CreateTournament(_ context.Context, t domain.Tournament) (domain.Tournament, error) {
	t.ID = uuid.New()
	return t, f.err
}

func TestAdminHandler(t *testing.T) {
	fa := &fakeAdmin{}
	h := NewAdminHandler(fa)

	w := do(http.HandlerFunc(h.SaveItem), http.MethodPost, "/admin/items", `{"slug":"fish","name":"Fish","category":"food","price":10}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fish", fa.item.Slug)
	assert.EqualValues(t, 10, fa.item.Price)

	w = do(http.HandlerFunc(h.Broadcast), http.MethodPost, "/admin/notifications/broadcast", `{"title":"Event!","body":"x2 coins"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"recipients":12}`, w.Body.String())
	assert.Equal(t, "Event!", fa.broadcast.Title)

	w = do(http.HandlerFunc(h.CreateTournament), http.MethodPost, "/admin/tournaments", `{"title":"Weekly"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(http.HandlerFunc(h.SaveItem), http.MethodPost, "/admin/items", `[`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_ServiceError(t *testing.T) {
	h := NewAdminHandler(&fakeAdmin{err: domain.ErrValidation("invalid item slug")})
	w := do(http.HandlerFunc(h.SaveItem), http.MethodPost, "/admin/items", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid item slug")
}
