package ratelimit

import (
	"context"
	"time"
)

const defaultWindow = time.Minute

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
// A limit of zero or less always allows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
}

func unlimited() Decision {
	return Decision{Allowed: true}
}

func normalizeWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return defaultWindow
	}
	return window
}
