//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates all tables in dependency-safe order.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables := []string{
		"event_outbox",
		"user_actions",
		"admin_users",
		"phrases",
		"daily_bonuses",
		"user_tournaments",
		"tournaments",
		"referral_uses",
		"referral_links",
		"user_items",
		"game_items",
		"notifications",
		"characters",
		"users",
	}

	for _, table := range tables {
		_, _ = env.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE")
	}
}
