package adapter

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

// StoreAdapter serves the item catalog and records purchases.
type StoreAdapter struct {
	Base
	items  repository.ItemRepository
	outbox repository.OutboxRepository
}

// NewStoreAdapter creates a StoreAdapter.
func NewStoreAdapter(b Base, items repository.ItemRepository, outbox repository.OutboxRepository) *StoreAdapter {
	return &StoreAdapter{Base: b, items: items, outbox: outbox}
}

// Items returns the active catalog.
func (a *StoreAdapter) Items(ctx context.Context, force bool) ([]domain.StoreItem, error) {
	return readThrough(ctx, a.Base, cache.StoreItemsKey(), StoreItemsTTL, force, []domain.StoreItem{},
		func(ctx context.Context) ([]domain.StoreItem, error) {
			return a.items.ListActive(ctx, a.Pool)
		})
}

// Item looks an item up in the cached catalog before asking the database.
func (a *StoreAdapter) Item(ctx context.Context, id uuid.UUID) (domain.StoreItem, error) {
	if items, err := a.Items(ctx, false); err == nil {
		for _, it := range items {
			if it.ID == id {
				return it, nil
			}
		}
	}
	it, err := a.items.FindByID(ctx, a.Pool, id)
	if err != nil {
		return domain.StoreItem{}, a.fail("game_items", err)
	}
	if it == nil || !it.Active {
		return domain.StoreItem{}, domain.ErrNotFound("item", id.String())
	}
	return *it, nil
}

// RecordPurchase stores the purchase and its item.purchased event atomically.
func (a *StoreAdapter) RecordPurchase(ctx context.Context, p *domain.Purchase) error {
	err := a.withTx(ctx, func(tx pgx.Tx) error {
		if err := a.items.RecordPurchase(ctx, tx, p); err != nil {
			return err
		}
		return a.outbox.Insert(ctx, tx, domain.NewItemPurchasedEvent(*p))
	})
	if err != nil {
		return a.fail("user_items", err)
	}
	return nil
}

// UpsertItem creates or updates a catalog item and drops the cached catalog.
func (a *StoreAdapter) UpsertItem(ctx context.Context, it *domain.StoreItem) error {
	if err := a.items.Upsert(ctx, a.Pool, it); err != nil {
		return a.fail("game_items", err)
	}
	a.invalidate(ctx, cache.StoreItemsKey())
	return nil
}
