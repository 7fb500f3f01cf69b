package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store implementation, a thin typed wrapper
// over go-redis/v9. Every method degrades gracefully: a reachability
// failure never propagates to the caller as an error, it is logged at WARN
// and treated as "absent" (reads) or a no-op (writes), per spec.md §7's
// cache-unavailable policy.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and pings it once to fail fast at
// startup, mirroring the teacher's cache.New().
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	provider := "Redis"
	if strings.Contains(redisURL, "upstash.io") {
		provider = "Upstash Redis"
	}
	slog.Info("cache connection established", "provider", provider, "host", opt.Addr)

	return &RedisStore{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache get failed, treating as absent", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

func (s *RedisStore) MGet(ctx context.Context, keys []string) [][]byte {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("cache mget failed, treating all as absent", "count", len(keys), "error", err)
		return out
	}

	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out
}

func (s *RedisStore) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("cache setex failed, dropped", "key", key, "error", err)
	}
}

func (s *RedisStore) Pipeline() Pipeliner {
	return &redisPipeline{pipe: s.client.Pipeline()}
}

type redisPipeline struct {
	pipe redis.Pipeliner
}

func (p *redisPipeline) SetEx(key string, ttl time.Duration, value []byte) Pipeliner {
	p.pipe.Set(context.Background(), key, value, ttl)
	return p
}

func (p *redisPipeline) Execute(ctx context.Context) error {
	_, err := p.pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("pipeline exec: %w", err)
	}
	return nil
}

// leaseScript acquires a lease with SET NX EX semantics, atomically, the
// same Lua-script-for-atomicity pattern as the teacher's rate limiter.
var leaseScript = redis.NewScript(`
	if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'EX', ARGV[2]) then
		return 1
	end
	return 0
`)

func (s *RedisStore) Lease(ctx context.Context, name string, ttl time.Duration) (LeaseHandle, bool) {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	res, err := leaseScript.Run(ctx, s.client, []string{name}, token, int(ttl.Seconds())).Int()
	if err != nil {
		slog.Warn("cache lease acquire failed", "name", name, "error", err)
		return nil, false
	}
	if res != 1 {
		return nil, false
	}
	return &redisLease{client: s.client, name: name, token: token}, true
}

type redisLease struct {
	client *redis.Client
	name   string
	token  string
}

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

func (l *redisLease) Release(ctx context.Context) {
	if err := releaseScript.Run(ctx, l.client, []string{l.name}, l.token).Err(); err != nil {
		slog.Warn("cache lease release failed", "name", l.name, "error", err)
	}
}

func (s *RedisStore) DeleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	var deleted int64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return fmt.Errorf("scan keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("delete keys: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if deleted > 0 {
		slog.Info("cache keys deleted", "count", deleted, "pattern", pattern)
	}
	return nil
}
