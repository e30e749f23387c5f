package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastTiming() deliveryTiming {
	return deliveryTiming{
		timeout:      time.Second,
		rateInterval: time.Millisecond,
		rateBurst:    1,
		retryInitial: time.Millisecond,
		retryMax:     2 * time.Millisecond,
		retryElapsed: 50 * time.Millisecond,
	}
}

func TestDeliverDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid_payload"))
	}))
	defer server.Close()

	d := newDeliverer(zerolog.Nop(), "webhook", server.URL, fastTiming())
	err := d.deliver(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "invalid_payload") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestDeliverGivesUpAfterRetryBudget(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := newDeliverer(zerolog.Nop(), "slack", server.URL, fastTiming())
	err := d.deliver(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "deliver to slack") {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got < 2 {
		t.Fatalf("expected retries, got %d attempt(s)", got)
	}
}

func TestDeliverStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	d := newDeliverer(zerolog.Nop(), "webhook", server.URL, fastTiming())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := d.deliver(ctx, []byte(`{}`)); err == nil {
		t.Fatal("expected error when context ends during Retry-After wait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("deliver ignored cancellation, took %s", elapsed)
	}
}

func TestThrottleIsPerEnvironment(t *testing.T) {
	timing := fastTiming()
	timing.rateInterval = time.Hour
	d := newDeliverer(zerolog.Nop(), "webhook", "http://example.invalid", timing)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := d.throttle(ctx, "production"); err != nil {
		t.Fatalf("first send should pass: %v", err)
	}
	if err := d.throttle(ctx, "staging"); err != nil {
		t.Fatalf("other environment should not be throttled: %v", err)
	}
	if err := d.throttle(ctx, "production"); err == nil {
		t.Fatal("expected second production send to be throttled")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"", 0, false},
		{"2", 2 * time.Second, true},
		{" 5 ", 5 * time.Second, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := retryAfter(tt.value)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Fatalf("retryAfter(%q) = %s, %v; want %s, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if wait, ok := retryAfter(future); !ok || wait <= 0 {
		t.Fatalf("expected positive wait for HTTP date, got %s %v", wait, ok)
	}
}
