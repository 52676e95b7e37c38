package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/domain"
)

const itemColumns = `id, slug, name, description, category, price, hunger_delta, happiness_delta,
	energy_max_bonus, avatar_url, active, sort_order`

type itemRepo struct{}

// NewItemRepository returns a pgx-backed ItemRepository.
func NewItemRepository() ItemRepository {
	return &itemRepo{}
}

func (r *itemRepo) ListActive(ctx context.Context, db DBTX) ([]domain.StoreItem, error) {
	rows, err := db.Query(ctx, `SELECT `+itemColumns+` FROM game_items WHERE active ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []domain.StoreItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *itemRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.StoreItem, error) {
	it, err := scanItem(db.QueryRow(ctx, `SELECT `+itemColumns+` FROM game_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return it, err
}

func (r *itemRepo) Upsert(ctx context.Context, db DBTX, it *domain.StoreItem) error {
	err := db.QueryRow(ctx, `
		INSERT INTO game_items (slug, name, description, category, price, hunger_delta,
			happiness_delta, energy_max_bonus, avatar_url, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			hunger_delta = EXCLUDED.hunger_delta,
			happiness_delta = EXCLUDED.happiness_delta,
			energy_max_bonus = EXCLUDED.energy_max_bonus,
			avatar_url = EXCLUDED.avatar_url,
			active = EXCLUDED.active,
			sort_order = EXCLUDED.sort_order
		RETURNING id`,
		it.Slug, it.Name, it.Description, string(it.Category), it.Price, it.HungerDelta,
		it.HappinessDelta, it.EnergyMaxBonus, it.AvatarURL, it.Active, it.SortOrder,
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("upsert item %s: %w", it.Slug, err)
	}
	return nil
}

func (r *itemRepo) RecordPurchase(ctx context.Context, db DBTX, p *domain.Purchase) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO user_items (id, user_id, item_id, price)
		VALUES ($1, $2, $3, $4)
		RETURNING purchased_at`,
		p.ID, p.UserID, p.ItemID, p.Price,
	).Scan(&p.PurchasedAt)
	if err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	return nil
}

func scanItem(row pgx.Row) (*domain.StoreItem, error) {
	var it domain.StoreItem
	var category string
	err := row.Scan(&it.ID, &it.Slug, &it.Name, &it.Description, &category, &it.Price,
		&it.HungerDelta, &it.HappinessDelta, &it.EnergyMaxBonus, &it.AvatarURL, &it.Active, &it.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Category = domain.ItemCategory(category)
	return &it, nil
}
