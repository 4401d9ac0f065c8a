package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds a single cache round trip.
const DefaultOpTimeout = 200 * time.Millisecond

// RedisStore is a Store backed by Redis.  A nil client is allowed: the
// store then behaves like Noop, which is what callers get when Redis was
// unreachable at startup.
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
	log     *slog.Logger
}

// NewRedisStore wraps rdb.  A non-positive timeout selects DefaultOpTimeout.
func NewRedisStore(rdb *redis.Client, timeout time.Duration, log *slog.Logger) *RedisStore {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{rdb: rdb, timeout: timeout, log: log}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if s.rdb == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Debug("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return b, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.Debug("cache set failed", "key", key, "error", err)
	}
}
