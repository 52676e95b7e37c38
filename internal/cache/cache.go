package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPrefix        = "pawtap:"
	defaultProbeInterval = 30 * time.Second
	probeKey             = "__probe__"
)

// envelope is the stored form of every value. Exp is unix millis; zero means no expiry.
type envelope struct {
	V   json.RawMessage `json:"v"`
	Exp int64           `json:"exp,omitempty"`
}

// Cache is a namespaced TTL cache over a Backend. Storage failures never reach callers:
// once the availability probe fails every operation is a logged no-op until the next
// successful probe.
type Cache struct {
	backend       Backend
	prefix        string
	logger        *slog.Logger
	now           func() time.Time
	probeInterval time.Duration

	mu        sync.Mutex
	probedAt  time.Time
	available bool
}

// Option customizes a Cache.
type Option func(*Cache)

// WithPrefix namespaces every key. Clear only removes keys under this prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithProbeInterval sets how long a probe result is trusted.
func WithProbeInterval(d time.Duration) Option {
	return func(c *Cache) { c.probeInterval = d }
}

// New creates a cache over backend.
func New(backend Backend, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		backend:       backend,
		prefix:        defaultPrefix,
		logger:        logger,
		now:           time.Now,
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available runs the sentinel write/delete probe, reusing a recent result.
func (c *Cache) Available(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.probedAt.IsZero() && now.Sub(c.probedAt) < c.probeInterval {
		return c.available
	}

	key := c.prefix + probeKey
	err := c.backend.Set(ctx, key, []byte("1"), time.Minute)
	if err == nil {
		err = c.backend.Delete(ctx, key)
	}

	if err != nil && (c.available || c.probedAt.IsZero()) {
		c.logger.Warn("cache storage unavailable", "error", err)
	}
	if err == nil && !c.available && !c.probedAt.IsZero() {
		c.logger.Info("cache storage available again")
	}
	c.available = err == nil
	c.probedAt = now
	return c.available
}

// invalidateProbe forces the next operation to probe again after a backend failure.
func (c *Cache) invalidateProbe() {
	c.mu.Lock()
	c.probedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) storageFailed(op, key string, err error) {
	c.logger.Warn("cache operation failed", "op", op, "key", key, "error", err)
	c.invalidateProbe()
}

// Set stores value under key. A ttl of zero keeps the value until it is removed.
// Only encoding failures are returned.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	if !c.Available(ctx) {
		c.logger.Debug("cache set skipped", "key", key)
		return nil
	}

	env := envelope{V: raw}
	if ttl > 0 {
		env.Exp = c.now().Add(ttl).UnixMilli()
	}
	c.write(ctx, key, env, ttl)
	return nil
}

func (c *Cache) write(ctx context.Context, key string, env envelope, ttl time.Duration) {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("encode cache envelope", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, c.prefix+key, data, ttl); err != nil {
		c.storageFailed("set", key, err)
	}
}

// Get decodes the value under key into dst. It reports false on a miss, on an expired
// entry (which is evicted) or when storage is unavailable.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	env, ok := c.read(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(env.V, dst); err != nil {
		c.logger.Warn("cache value does not decode, evicting", "key", key, "error", err)
		c.Remove(ctx, key)
		return false
	}
	return true
}

func (c *Cache) read(ctx context.Context, key string) (envelope, bool) {
	var env envelope
	if !c.Available(ctx) {
		return env, false
	}

	data, err := c.backend.Get(ctx, c.prefix+key)
	if errors.Is(err, ErrMiss) {
		return env, false
	}
	if err != nil {
		c.storageFailed("get", key, err)
		return env, false
	}

	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("cache envelope corrupt, evicting", "key", key, "error", err)
		c.Remove(ctx, key)
		return env, false
	}
	if env.Exp > 0 && c.now().UnixMilli() >= env.Exp {
		c.Remove(ctx, key)
		return env, false
	}
	return env, true
}

// Has reports whether a live value is stored under key.
func (c *Cache) Has(ctx context.Context, key string) bool {
	_, ok := c.read(ctx, key)
	return ok
}

// Remove deletes key.
func (c *Cache) Remove(ctx context.Context, key string) {
	if !c.Available(ctx) {
		return
	}
	if err := c.backend.Delete(ctx, c.prefix+key); err != nil {
		c.storageFailed("remove", key, err)
	}
}

// Clear removes every key under the cache prefix.
func (c *Cache) Clear(ctx context.Context) {
	if !c.Available(ctx) {
		return
	}
	if err := c.backend.DeletePrefix(ctx, c.prefix); err != nil {
		c.storageFailed("clear", c.prefix, err)
	}
}

// Update merges the JSON object partial into the object stored under key, keeping the
// remaining TTL. Non-object values are replaced. It reports false when nothing live is
// stored under key.
func (c *Cache) Update(ctx context.Context, key string, partial any) (bool, error) {
	patch, err := json.Marshal(partial)
	if err != nil {
		return false, fmt.Errorf("encode cache patch %s: %w", key, err)
	}

	env, ok := c.read(ctx, key)
	if !ok {
		return false, nil
	}

	env.V = mergeObjects(env.V, patch)

	var ttl time.Duration
	if env.Exp > 0 {
		ttl = time.UnixMilli(env.Exp).Sub(c.now())
		if ttl <= 0 {
			c.Remove(ctx, key)
			return false, nil
		}
	}
	c.write(ctx, key, env, ttl)
	return true, nil
}

// mergeObjects overlays the top-level keys of patch onto base. When either side is not
// a JSON object, patch wins.
func mergeObjects(base, patch json.RawMessage) json.RawMessage {
	var b, p map[string]json.RawMessage
	if json.Unmarshal(base, &b) != nil || json.Unmarshal(patch, &p) != nil || b == nil || p == nil {
		return patch
	}
	for k, v := range p {
		b[k] = v
	}
	merged, err := json.Marshal(b)
	if err != nil {
		return patch
	}
	return merged
}
