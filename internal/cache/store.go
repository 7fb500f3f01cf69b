// Package cache abstracts the remote key/value store the tile and viewport
// services sit in front of (component D). Two implementations satisfy
// Store: RedisStore backed by go-redis, and MemoryStore, an in-process
// fallback used when the Redis URL is empty or unreachable. Both degrade to "absent on read,
// silent drop on write" when the backing store is unreachable, so the rest
// of the system never branches on which implementation it holds.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Store is the capability set the tile and viewport services need from a
// remote cache: get, mget, setex, a batched pipeline, and a named lease.
type Store interface {
	// Get returns the cached value and true, or (nil, false) if absent or
	// the backend is unreachable.
	Get(ctx context.Context, key string) ([]byte, bool)

	// MGet returns a value-or-absent slice aligned with keys, in one round
	// trip where the backend supports it.
	MGet(ctx context.Context, keys []string) [][]byte

	// SetEx stores value under key with the given TTL. Failures are
	// swallowed and logged; callers must not treat this as fallible.
	SetEx(ctx context.Context, key string, ttl time.Duration, value []byte)

	// Pipeline returns a batch writer. Call Execute to flush.
	Pipeline() Pipeliner

	// Lease attempts to acquire a named, time-limited exclusive claim.
	// Returns nil, false if already held or the backend is unreachable.
	Lease(ctx context.Context, name string, ttl time.Duration) (LeaseHandle, bool)

	// DeleteByPattern removes every key matching pattern (glob-style),
	// used by the admin cache-flush endpoint.
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Pipeliner batches SetEx calls for a single flush.
type Pipeliner interface {
	SetEx(key string, ttl time.Duration, value []byte) Pipeliner
	Execute(ctx context.Context) error
}

// LeaseHandle represents an acquired lease; Release is best-effort.
type LeaseHandle interface {
	Release(ctx context.Context)
}

// New selects the Store implementation from redisURL: RedisStore when set
// and reachable, MemoryStore otherwise. Both the supervisor and the
// standalone precompute CLI share this selection so they always agree on
// which cache backend a given configuration resolves to.
func New(redisURL string) Store {
	if redisURL == "" {
		slog.Info("REDIS_URL not set, using in-memory cache")
		return NewMemoryStore()
	}

	store, err := NewRedisStore(redisURL)
	if err != nil {
		slog.Warn("redis unavailable, falling back to in-memory cache", "error", err)
		return NewMemoryStore()
	}
	return store
}
