// Package probe implements liveness checks against external dependencies.
//
// A probe never returns an error: dependency failures are reported as an
// unhealthy Result so a caller aggregating several probes always gets an
// answer from each of them.
package probe

import (
	"context"
	"errors"
	"net"
	"time"
)

// FailureKind classifies why a probe did not report healthy.
type FailureKind string

const (
	KindNone          FailureKind = ""
	KindNotConfigured FailureKind = "not_configured"
	KindUnreachable   FailureKind = "unreachable"
	KindTimeout       FailureKind = "timeout"
	KindBadStatus     FailureKind = "bad_status"
)

// Service states reported per dependency.
const (
	StateUp            = "up"
	StateDown          = "down"
	StateNotConfigured = "not_configured"
)

// Result is the outcome of one probe run.
type Result struct {
	Name     string
	Healthy  bool
	Latency  time.Duration
	Measured bool
	Kind     FailureKind
	Err      error
}

// Probe checks a single dependency.
type Probe interface {
	Name() string
	Run(ctx context.Context) Result
}

// LatencyMS returns the latency in milliseconds, or nil when it was not measured.
func (r Result) LatencyMS() *int64 {
	if !r.Measured {
		return nil
	}
	ms := r.Latency.Milliseconds()
	return &ms
}

// State maps the result to up, down or not_configured.
func (r Result) State() string {
	switch {
	case r.Kind == KindNotConfigured:
		return StateNotConfigured
	case r.Healthy:
		return StateUp
	default:
		return StateDown
	}
}

// View is the JSON form of a Result.
type View struct {
	Name      string      `json:"name"`
	State     string      `json:"state"`
	LatencyMS *int64      `json:"latencyMs"`
	Kind      FailureKind `json:"kind,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// View renders the result for admin output.
func (r Result) View() View {
	view := View{
		Name:      r.Name,
		State:     r.State(),
		LatencyMS: r.LatencyMS(),
		Kind:      r.Kind,
	}
	if r.Err != nil {
		view.Error = r.Err.Error()
	}
	return view
}

func healthy(name string, latency time.Duration) Result {
	return Result{Name: name, Healthy: true, Latency: latency, Measured: true}
}

func notConfigured(name string) Result {
	return Result{Name: name, Healthy: true, Kind: KindNotConfigured}
}

func failed(name string, kind FailureKind, err error) Result {
	return Result{Name: name, Healthy: false, Kind: kind, Err: err}
}

func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}
