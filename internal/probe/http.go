package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	EmbeddingName      = "embedding"
	defaultHTTPTimeout = 3 * time.Second
	drainLimit         = 4 << 10
)

// HTTP probes an HTTP dependency with a single GET and no retries.
type HTTP struct {
	logger  zerolog.Logger
	name    string
	target  string
	timeout time.Duration
	client  *retryablehttp.Client
}

// NewHTTP returns a probe for baseURL joined with path. An empty baseURL
// means the dependency is not expected and the probe reports not_configured.
func NewHTTP(logger zerolog.Logger, name, baseURL, path string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}

	return &HTTP{
		logger:  logger,
		name:    name,
		target:  joinURL(baseURL, path),
		timeout: timeout,
		client:  client,
	}
}

// Name implements Probe.
func (p *HTTP) Name() string {
	return p.name
}

// Target returns the URL the probe requests, or "" when unconfigured.
func (p *HTTP) Target() string {
	return p.target
}

// Run implements Probe.
func (p *HTTP) Run(ctx context.Context) Result {
	if p.target == "" {
		return notConfigured(p.name)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		return p.fail(KindUnreachable, fmt.Errorf("build %s request: %w", p.name, err))
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return p.fail(classify(err), fmt.Errorf("%s request failed: %w", p.name, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.fail(KindBadStatus, fmt.Errorf("unexpected status: %s", resp.Status))
	}
	return healthy(p.name, latency)
}

func (p *HTTP) fail(kind FailureKind, err error) Result {
	p.logger.Warn().Err(err).Str("probe", p.name).Str("kind", string(kind)).Msg("dependency probe failed")
	return failed(p.name, kind, err)
}

func joinURL(baseURL, path string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return ""
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
