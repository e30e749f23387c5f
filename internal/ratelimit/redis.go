package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultPrefix       = "phenotype-health:ratelimit:"
	defaultRedisTimeout = 250 * time.Millisecond
)

// Counter is the part of a go-redis client the fixed-window limiter uses.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Redis is a fixed-window limiter shared by every instance pointing at the
// same Redis. It fails open: a Redis error allows the request.
type Redis struct {
	client  Counter
	logger  zerolog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedis wraps client. The client stays owned by the caller.
func NewRedis(client Counter, logger zerolog.Logger) *Redis {
	return &Redis{
		client:  client,
		logger:  logger,
		prefix:  defaultPrefix,
		timeout: defaultRedisTimeout,
	}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return unlimited()
	}
	window = normalizeWindow(window)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	redisKey := r.prefix + key
	counter, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		r.logError("incr", err)
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}
	if counter == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			r.logError("expire", err)
		}
	}
	ttl, err := r.client.TTL(ctx, redisKey).Result()
	switch {
	case err != nil:
		r.logError("ttl", err)
		ttl = window
	case ttl < 0:
		// The key has no expiry, e.g. the first EXPIRE failed. Without one
		// the window never closes.
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			r.logError("expire", err)
		}
		ttl = window
	case ttl == 0:
		ttl = window
	}

	remaining := limit - int(counter)
	if remaining < 0 {
		remaining = 0
	}
	decision := Decision{
		Allowed:   int(counter) <= limit,
		Limit:     limit,
		Remaining: remaining,
	}
	if !decision.Allowed {
		decision.RetryAfter = ttl
	}
	return decision
}

func (r *Redis) logError(op string, err error) {
	r.logger.Error().Err(err).Str("op", op).Msg("redis rate limiter error")
}
