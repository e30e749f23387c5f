package probe

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	RateLimitName       = "rateLimit"
	defaultRedisTimeout = time.Second
)

// RedisPinger is the part of a go-redis client the probe uses.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Redis probes the rate limiter's key-value store.
type Redis struct {
	logger  zerolog.Logger
	client  RedisPinger
	timeout time.Duration
}

// NewRedis returns a Redis probe. A nil client reports not_configured.
func NewRedis(logger zerolog.Logger, client RedisPinger, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	return &Redis{logger: logger, client: client, timeout: timeout}
}

// Name implements Probe.
func (r *Redis) Name() string {
	return RateLimitName
}

// Run implements Probe.
func (r *Redis) Run(ctx context.Context) Result {
	if r.client == nil {
		return notConfigured(RateLimitName)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("redis probe failed")
		return failed(RateLimitName, classify(err), err)
	}
	return healthy(RateLimitName, time.Since(start))
}
