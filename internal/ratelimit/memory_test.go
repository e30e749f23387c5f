package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAllowsUpToLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newMemory(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		decision := m.Allow(context.Background(), "ip:1.2.3.4", 3, time.Minute)
		if !decision.Allowed {
			t.Fatalf("request %d: expected allowed", i+1)
		}
		if decision.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 2-i, decision.Remaining)
		}
	}

	decision := m.Allow(context.Background(), "ip:1.2.3.4", 3, time.Minute)
	if decision.Allowed {
		t.Fatalf("expected fourth request to be rejected")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > 20*time.Second {
		t.Fatalf("expected retry after within one refill interval, got %s", decision.RetryAfter)
	}

	other := m.Allow(context.Background(), "ip:5.6.7.8", 3, time.Minute)
	if !other.Allowed {
		t.Fatalf("expected separate key to have its own bucket")
	}
}

func TestMemoryRefills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newMemory(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		m.Allow(context.Background(), "k", 2, time.Minute)
	}
	if m.Allow(context.Background(), "k", 2, time.Minute).Allowed {
		t.Fatalf("expected bucket to be empty")
	}

	now = now.Add(30 * time.Second)
	if !m.Allow(context.Background(), "k", 2, time.Minute).Allowed {
		t.Fatalf("expected one token after half a window")
	}
}

func TestMemoryNonPositiveLimitAllows(t *testing.T) {
	m := newMemory(time.Now)
	for i := 0; i < 10; i++ {
		if !m.Allow(context.Background(), "k", 0, time.Minute).Allowed {
			t.Fatalf("expected unlimited")
		}
	}
}

func TestMemorySweepDropsIdleBuckets(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := newMemory(func() time.Time { return now })
	m.Allow(context.Background(), "idle", 5, time.Minute)
	m.Allow(context.Background(), "busy", 5, time.Hour)

	m.sweep(now.Add(2 * time.Minute))

	if _, ok := m.buckets["idle"]; ok {
		t.Fatalf("expected idle bucket to be swept")
	}
	if _, ok := m.buckets["busy"]; !ok {
		t.Fatalf("expected bucket within its window to survive")
	}
}

func TestMemoryCloseIsIdempotent(t *testing.T) {
	m := NewMemory()
	m.Close()
	m.Close()
}
