package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HitRecorder is told about every rejected request.
type HitRecorder interface {
	IncRateLimitHits(route string)
}

// Rule is the per-route limit applied by Middleware.
type Rule struct {
	Limit  int
	Window time.Duration
	// TrustForwarded keys clients by X-Forwarded-For. Enable it only behind
	// a proxy that appends the connecting address to that header.
	TrustForwarded bool
}

// Middleware limits requests per client IP. route labels rejections.
// A nil limiter or a non-positive limit disables limiting.
func Middleware(limiter Limiter, route string, rule Rule, recorder HitRecorder) func(http.Handler) http.Handler {
	limit, window := rule.Limit, rule.Window
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := route + ":" + ClientIP(req, rule.TrustForwarded)
			decision := limiter.Allow(req.Context(), key, limit, window)
			applyHeaders(w, decision)
			if !decision.Allowed {
				if recorder != nil {
					recorder.IncRateLimitHits(route)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func applyHeaders(w http.ResponseWriter, decision Decision) {
	if decision.Limit <= 0 {
		return
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.Allowed {
		seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		headers.Set("Retry-After", strconv.Itoa(seconds))
	}
}

// ClientIP identifies the caller. With trustForwarded the last
// X-Forwarded-For hop is used, which is the address the trusted proxy saw;
// earlier hops are client supplied. Otherwise, or when that hop is not an
// IP, the connection's remote address is used.
func ClientIP(req *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if forwarded := req.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
			hops := strings.Split(forwarded[len(forwarded)-1], ",")
			if ip := net.ParseIP(strings.TrimSpace(hops[len(hops)-1])); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
