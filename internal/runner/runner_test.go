package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// manualTicker fires only when the test sends on ch.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time, 4)}
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop() { t.stopped.Store(true) }

// startRunner runs r in the background and returns a stop func that
// cancels it and waits for Run to return.
func startRunner(t *testing.T, r *Runner) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- r.Run(ctx) }()

	return func() error {
		cancel()
		select {
		case err := <-result:
			return err
		case <-time.After(time.Second):
			t.Fatalf("runner did not stop after cancel")
			return nil
		}
	}
}

func expectCycles(t *testing.T, cycles <-chan struct{}, n int) {
	t.Helper()
	deadline := time.After(time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-cycles:
		case <-deadline:
			t.Fatalf("expected %d cycle(s), saw %d", n, i)
		}
	}
}

func TestRun_EvaluatesOnStartAndOnEveryTick(t *testing.T) {
	ticker := newManualTicker()
	cycles := make(chan struct{}, 4)
	var interval time.Duration

	r := New(zerolog.Nop(), 30*time.Second,
		WithTickerFactory(func(d time.Duration) Ticker {
			interval = d
			return ticker
		}),
		WithRunOnce(func(context.Context) error {
			cycles <- struct{}{}
			return nil
		}),
	)
	stop := startRunner(t, r)

	expectCycles(t, cycles, 1)
	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	expectCycles(t, cycles, 2)

	if err := stop(); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if interval != 30*time.Second {
		t.Fatalf("ticker built with %s, want 30s", interval)
	}
	if !ticker.stopped.Load() {
		t.Fatalf("expected ticker to be stopped")
	}
}

func TestRun_CycleErrorsDoNotStopTheLoop(t *testing.T) {
	ticker := newManualTicker()
	cycles := make(chan struct{}, 4)

	r := New(zerolog.Nop(), time.Second,
		WithTickerFactory(func(time.Duration) Ticker { return ticker }),
		WithRunOnce(func(context.Context) error {
			cycles <- struct{}{}
			return stageError("notify", errors.New("webhook unreachable"))
		}),
	)
	stop := startRunner(t, r)

	expectCycles(t, cycles, 1)
	ticker.ch <- time.Now()
	expectCycles(t, cycles, 1)

	if err := stop(); err != nil {
		t.Fatalf("expected nil after cancel, got %v", err)
	}
}

func TestRun_RejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		if err := New(zerolog.Nop(), interval).Run(context.Background()); err == nil {
			t.Fatalf("expected error for interval %s", interval)
		}
	}
}

func TestRunOnce_WithoutEvaluatorFails(t *testing.T) {
	if err := New(zerolog.Nop(), time.Second).RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error when no evaluator is configured")
	}
}

func TestCycleError(t *testing.T) {
	if stageError("save state", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
	cause := errors.New("disk full")
	err := stageError("save state", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if err.Error() != "watch cycle save state: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
