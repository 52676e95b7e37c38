// Package adapter syncs game resources with Postgres through the cache. Every call
// returns a usable value: on a backend failure it is the resource's empty fallback,
// paired with a REMOTE_UNAVAILABLE error the caller may ignore, retry or surface.
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/repository"
)

// Cache TTLs per resource.
const (
	CharacterTTL     = 2 * time.Minute
	UserTTL          = 5 * time.Minute
	NotificationsTTL = time.Minute
	StoreItemsTTL    = 5 * time.Minute
	ReferralTTL      = 5 * time.Minute
	TournamentsTTL   = 2 * time.Minute
	LeaderboardTTL   = time.Minute
	DailyBonusTTL    = time.Minute
	PhrasesTTL       = 12 * time.Hour
)

// Base carries what every adapter shares.
type Base struct {
	Pool   repository.Pool
	Cache  *cache.Cache
	Seq    *Sequencer
	Logger *slog.Logger
}

// NewBase creates the shared adapter dependencies.
func NewBase(pool repository.Pool, c *cache.Cache, logger *slog.Logger) Base {
	return Base{Pool: pool, Cache: c, Seq: NewSequencer(), Logger: logger}
}

// readThrough serves key from the cache unless force is set, otherwise runs fetch and
// caches the result when no newer request for key was issued meanwhile.
func readThrough[T any](ctx context.Context, b Base, key string, ttl time.Duration, force bool, fallback T, fetch func(ctx context.Context) (T, error)) (T, error) {
	if !force {
		var cached T
		if b.Cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	id := b.Seq.Next(key)
	v, err := fetch(ctx)
	if err != nil {
		return fallback, b.fail(key, err)
	}
	b.store(ctx, key, id, v, ttl)
	return v, nil
}

// store caches v under key if id is still the latest request for key.
func (b Base) store(ctx context.Context, key string, id uint64, v any, ttl time.Duration) {
	if !b.Seq.IsLatest(key, id) {
		b.Logger.Debug("stale response not cached", "key", key, "request_id", id)
		return
	}
	if err := b.Cache.Set(ctx, key, v, ttl); err != nil {
		b.Logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// fail passes domain errors through and wraps everything else as ErrUnavailable.
func (b Base) fail(resource string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	b.Logger.Warn("remote call failed", "resource", resource, "error", err)
	return domain.ErrUnavailable(resource, err)
}

// invalidate drops key and bumps its sequence so in-flight reads do not re-cache it.
func (b Base) invalidate(ctx context.Context, key string) {
	b.Seq.Next(key)
	b.Cache.Remove(ctx, key)
}

// withTx runs fn in a transaction on the pool.
func (b Base) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, b.Pool, fn)
}
