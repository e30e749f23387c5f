package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepInterval = 5 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// Memory keeps one token bucket per key in process memory. It is used
// when no shared store is configured.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemory returns a Memory limiter and starts its idle-bucket sweeper.
// Call Close to stop the sweeper.
func NewMemory() *Memory {
	m := newMemory(time.Now)
	go m.sweepLoop()
	return m
}

func newMemory(now func() time.Time) *Memory {
	return &Memory{
		buckets: make(map[string]*bucket),
		now:     now,
		stopCh:  make(chan struct{}),
	}
}

// Allow implements Limiter. The bucket refills limit tokens per window
// and holds at most limit tokens.
func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return unlimited()
	}
	window = normalizeWindow(window)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || b.limit != limit || b.window != window {
		interval := window / time.Duration(limit)
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(interval), limit),
			limit:   limit,
			window:  window,
		}
		m.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}

	decision := Decision{Allowed: allowed, Limit: limit, Remaining: remaining}
	if !allowed {
		interval := window / time.Duration(limit)
		decision.RetryAfter = time.Duration((1 - tokens) * float64(interval))
	}
	return decision
}

// Close stops the sweeper.
func (m *Memory) Close() {
	m.once.Do(func() {
		close(m.stopCh)
	})
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(m.now())
		case <-m.stopCh:
			return
		}
	}
}

// sweep drops buckets idle for longer than their window; they would be
// full again anyway.
func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) > b.window {
			delete(m.buckets, key)
		}
	}
}
