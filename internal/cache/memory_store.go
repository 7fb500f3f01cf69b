package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntry pairs a cached value with its own expiry, since the
// underlying expirable LRU only enforces a single construction-time TTL
// across all entries and tile (30 day) / viewport (5 min) keys need
// different lifetimes.
type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is the degrade-path Store implementation: an in-process TTL
// cache with no cross-process sharing. Selected by New when the Redis URL is
// empty or Redis is unreachable at startup, so the service still serves (just without a shared tile/viewport cache)
// rather than refusing to start.
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]

	mu     sync.Mutex
	leases map[string]time.Time
}

// memoryStoreCapacity bounds the in-memory fallback cache so a long-running
// process without Redis cannot grow its tile cache unboundedly.
const memoryStoreCapacity = 50_000

// memoryStoreBackstopTTL is the LRU's own eviction TTL, a safety net in case
// a caller never reads back an entry to trigger the expiry check in Get.
const memoryStoreBackstopTTL = 30 * 24 * time.Hour

// NewMemoryStore constructs a MemoryStore. Per-key TTLs passed to SetEx are
// tracked explicitly in memoryEntry.expires; the LRU's own TTL is only a
// backstop against entries nobody ever reads again.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lru:    expirable.NewLRU[string, memoryEntry](memoryStoreCapacity, nil, memoryStoreBackstopTTL),
		leases: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		s.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (s *MemoryStore) MGet(ctx context.Context, keys []string) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if v, ok := s.Get(ctx, k); ok {
			out[i] = v
		}
	}
	return out
}

func (s *MemoryStore) SetEx(_ context.Context, key string, ttl time.Duration, value []byte) {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.lru.Add(key, memoryEntry{value: value, expires: expires})
}

func (s *MemoryStore) Pipeline() Pipeliner {
	return &memoryPipeline{store: s}
}

type memoryPipeline struct {
	store *MemoryStore
	ops   []func()
}

func (p *memoryPipeline) SetEx(key string, ttl time.Duration, value []byte) Pipeliner {
	p.ops = append(p.ops, func() { p.store.SetEx(context.Background(), key, ttl, value) })
	return p
}

func (p *memoryPipeline) Execute(_ context.Context) error {
	for _, op := range p.ops {
		op()
	}
	return nil
}

func (s *MemoryStore) Lease(_ context.Context, name string, ttl time.Duration) (LeaseHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if until, ok := s.leases[name]; ok && time.Now().Before(until) {
		return nil, false
	}
	s.leases[name] = time.Now().Add(ttl)
	return &memoryLease{store: s, name: name}, true
}

type memoryLease struct {
	store *MemoryStore
	name  string
}

func (l *memoryLease) Release(_ context.Context) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	delete(l.store.leases, l.name)
}

// DeleteByPattern removes every key that starts with the part of pattern
// before its first '*'. Anything after that '*' is ignored, so this matches
// glob patterns of the form "prefix*" only.
func (s *MemoryStore) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := pattern
	if idx := indexOfWildcard(pattern); idx >= 0 {
		prefix = pattern[:idx]
	}
	for _, k := range s.lru.Keys() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			s.lru.Remove(k)
		}
	}
	return nil
}

func indexOfWildcard(pattern string) int {
	for i, r := range pattern {
		if r == '*' {
			return i
		}
	}
	return -1
}
