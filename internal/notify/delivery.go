package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const responseSnippetLimit = 1024

// deliveryTiming bounds how often and how persistently alerts are posted.
type deliveryTiming struct {
	timeout      time.Duration
	rateInterval time.Duration
	rateBurst    int
	retryInitial time.Duration
	retryMax     time.Duration
	retryElapsed time.Duration
}

var defaultDeliveryTiming = deliveryTiming{
	timeout:      10 * time.Second,
	rateInterval: time.Second,
	rateBurst:    1,
	retryInitial: time.Second,
	retryMax:     10 * time.Second,
	retryElapsed: 30 * time.Second,
}

// deliverer posts JSON payloads to one alert destination. Each environment
// gets its own send rate so a noisy one cannot starve the others.
type deliverer struct {
	logger      zerolog.Logger
	destination string
	url         string
	client      *retryablehttp.Client
	timing      deliveryTiming

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newDeliverer(logger zerolog.Logger, destination, url string, timing deliveryTiming) *deliverer {
	// Retries are driven by the backoff policy in deliver, not by the client.
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) { return false, nil }
	client.HTTPClient = &http.Client{Timeout: timing.timeout}

	return &deliverer{
		logger:      logger.With().Str("destination", destination).Logger(),
		destination: destination,
		url:         url,
		client:      client,
		timing:      timing,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// throttle blocks until environment may send again.
func (d *deliverer) throttle(ctx context.Context, environment string) error {
	d.mu.Lock()
	limiter, ok := d.limiters[environment]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(d.timing.rateInterval), d.timing.rateBurst)
		d.limiters[environment] = limiter
	}
	d.mu.Unlock()
	return limiter.Wait(ctx)
}

// deliver posts payload, retrying network failures, 5xx and 429 answers
// with exponential backoff. A Retry-After header overrides the next wait.
func (d *deliverer) deliver(ctx context.Context, payload []byte) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.timing.retryInitial
	policy.MaxInterval = d.timing.retryMax
	policy.MaxElapsedTime = d.timing.retryElapsed
	policy.Reset()

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := d.attempt(ctx, payload)
		var throttled *throttledError
		if errors.As(err, &throttled) && !waitFor(ctx, throttled.Wait) {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		d.logger.Debug().Err(err).Int("attempt", attempts).Dur("wait", wait).Msg("alert delivery retrying")
	})
	if err != nil {
		return fmt.Errorf("deliver to %s after %d attempt(s): %w", d.destination, attempts, err)
	}
	return nil
}

// attempt posts payload once. Errors wrapped in backoff.Permanent are not
// worth retrying.
func (d *deliverer) attempt(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, d.timing.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build %s request: %w", d.destination, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", d.destination, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		limited := fmt.Errorf("%s rate limited: %s", d.destination, resp.Status)
		if wait, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return &throttledError{Wait: wait, err: limited}
		}
		return limited
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%s server error: %s", d.destination, resp.Status)
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseSnippetLimit))
	if text := strings.TrimSpace(string(snippet)); text != "" {
		return backoff.Permanent(fmt.Errorf("%s rejected alert: %s (%s)", d.destination, resp.Status, text))
	}
	return backoff.Permanent(fmt.Errorf("%s rejected alert: %s", d.destination, resp.Status))
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, seconds > 0
	}
	if when, err := http.ParseTime(value); err == nil {
		wait := time.Until(when)
		return wait, wait > 0
	}
	return 0, false
}

func waitFor(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// throttledError is a 429 answer that said how long to wait.
type throttledError struct {
	Wait time.Duration
	err  error
}

func (e *throttledError) Error() string {
	return fmt.Sprintf("%v; retry after %s", e.err, e.Wait)
}

func (e *throttledError) Unwrap() error {
	return e.err
}
