package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pawtap/server/internal/domain"
)

// CatalogWriter changes the store catalog.
type CatalogWriter interface {
	UpsertItem(ctx context.Context, it *domain.StoreItem) error
}

// Broadcaster sends a notification to every user.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind, title, body string) (int64, error)
}

// TournamentWriter creates tournaments.
type TournamentWriter interface {
	Create(ctx context.Context, t *domain.Tournament) error
}

// AdminService backs the back-office endpoints.
type AdminService struct {
	catalog     CatalogWriter
	broadcaster Broadcaster
	tournaments TournamentWriter
	logger      *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(catalog CatalogWriter, broadcaster Broadcaster, tournaments TournamentWriter, logger *slog.Logger) *AdminService {
	return &AdminService{catalog: catalog, broadcaster: broadcaster, tournaments: tournaments, logger: logger}
}

// SaveItem validates and stores a catalog item.
func (s *AdminService) SaveItem(ctx context.Context, item domain.StoreItem) (domain.StoreItem, error) {
	if err := domain.ValidateStoreItem(item); err != nil {
		return domain.StoreItem{}, domain.ErrValidation(err.Error())
	}
	if err := s.catalog.UpsertItem(ctx, &item); err != nil {
		return domain.StoreItem{}, err
	}
	s.logger.Info("store item saved", "item_id", item.ID, "slug", item.Slug, "price", item.Price)
	return item, nil
}

// BroadcastInput holds a broadcast notification.
type BroadcastInput struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Broadcast sends a notification to every player and returns how many received it.
func (s *AdminService) Broadcast(ctx context.Context, in BroadcastInput) (int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return 0, domain.ErrValidation("title is required")
	}
	if in.Kind == "" {
		in.Kind = "announcement"
	}
	n, err := s.broadcaster.Broadcast(ctx, in.Kind, in.Title, in.Body)
	if err != nil {
		return 0, err
	}
	s.logger.Info("notification broadcast", "kind", in.Kind, "recipients", n)
	return n, nil
}

// CreateTournament validates and stores a tournament.
func (s *AdminService) CreateTournament(ctx context.Context, t domain.Tournament) (domain.Tournament, error) {
	t.Title = strings.TrimSpace(t.Title)
	switch {
	case t.Title == "":
		return domain.Tournament{}, domain.ErrValidation("title is required")
	case t.EntryFee < 0 || t.PrizePool < 0:
		return domain.Tournament{}, domain.ErrValidation("entry fee and prize pool must not be negative")
	case !t.EndsAt.After(t.StartsAt):
		return domain.Tournament{}, domain.ErrValidation("ends_at must be after starts_at")
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Active = true
	if err := s.tournaments.Create(ctx, &t); err != nil {
		return domain.Tournament{}, err
	}
	s.logger.Info("tournament created", "tournament_id", t.ID, "title", t.Title)
	return t, nil
}
