package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements fixed-window rate limiting backed by Redis,
// so limits hold across API replicas. It fails open: if Redis is
// unreachable the request is allowed rather than blocking traffic on an
// infrastructure outage.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Allow checks if a request from the given key should be allowed.
// Returns whether the request is allowed, how many requests remain in the
// current window, and the seconds until the window resets when blocked.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		slog.WarnContext(ctx, "rate limit check failed, allowing request", "error", err)
		return true, config.RequestsPerWindow, 0
	}

	// First hit in the window starts the expiry clock.
	if count == 1 {
		if err := s.client.PExpire(ctx, key, config.WindowDuration).Err(); err != nil {
			slog.WarnContext(ctx, "failed to set rate limit window expiry", "error", err, "key", key)
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, config.RequestsPerWindow - int(count), 0
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return false, 0, 1
	}
	retryAfter = int((ttl + time.Second - 1) / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// redisStoreAdapter narrows RedisRateLimitStore to the RateLimitStore
// interface used by the RateLimiter middleware.
type redisStoreAdapter struct {
	store *RedisRateLimitStore
}

func (a redisStoreAdapter) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	allowed, _, retryAfter := a.store.Allow(ctx, key, config)
	return allowed, retryAfter
}

// AsRateLimitStore adapts the store for use with the RateLimiter middleware.
func (s *RedisRateLimitStore) AsRateLimitStore() RateLimitStore {
	return redisStoreAdapter{store: s}
}
