package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nholik/phenotype-health/internal/auth"
	"github.com/nholik/phenotype-health/internal/features"
	"github.com/nholik/phenotype-health/internal/healthcheck"
	"github.com/nholik/phenotype-health/internal/metrics"
	"github.com/nholik/phenotype-health/internal/ratelimit"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 5 * time.Second
	rateLimitWindow = time.Minute
)

// Routes is what the health server exposes.
type Routes struct {
	Evaluator      healthcheck.Evaluator
	Features       *features.Evaluator
	Issuer         *auth.Issuer
	Limiter        ratelimit.Limiter
	RatePerMinute  int
	IncludeDetails bool
	TrustForwarded bool
	Metrics        *metrics.Metrics
}

// Start launches health and metrics HTTP servers as configured. The
// returned channel closes once every started server has shut down after
// ctx is cancelled.
func Start(ctx context.Context, logger zerolog.Logger, routes Routes, healthPort, metricsPort int) <-chan struct{} {
	var wg sync.WaitGroup
	done := make(chan struct{})
	defer func() {
		go func() {
			wg.Wait()
			close(done)
		}()
	}()

	if healthPort == 0 && metricsPort == 0 {
		return done
	}

	if healthPort > 0 && metricsPort > 0 && healthPort == metricsPort {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, logger, routes)
		registerMetricsRoute(mux, routes.Metrics)
		startServer(ctx, &wg, logger, mux, healthPort, "health/metrics")
		return done
	}

	if healthPort > 0 {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, logger, routes)
		startServer(ctx, &wg, logger, mux, healthPort, "health")
	}

	if metricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, routes.Metrics)
		startServer(ctx, &wg, logger, mux, metricsPort, "metrics")
	}
	return done
}

// NewHealthMux returns the health routes on a fresh mux.
func NewHealthMux(logger zerolog.Logger, routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthRoutes(mux, logger, routes)
	return mux
}

func registerHealthRoutes(mux *http.ServeMux, logger zerolog.Logger, routes Routes) {
	common := []healthcheck.Middleware{
		healthcheck.RequestID,
		healthcheck.AccessLog(logger),
		healthcheck.Recover(logger),
		healthcheck.GetOnly,
	}
	limited := func(route string) healthcheck.Middleware {
		rule := ratelimit.Rule{
			Limit:          routes.RatePerMinute,
			Window:         rateLimitWindow,
			TrustForwarded: routes.TrustForwarded,
		}
		return ratelimit.Middleware(routes.Limiter, route, rule, routes.Metrics)
	}
	admin := healthcheck.RequireAdmin(logger, routes.Issuer)

	mux.Handle("/health", healthcheck.Chain(
		healthcheck.HealthHandler(logger, routes.Evaluator, routes.IncludeDetails),
		append(common, limited("health"))...,
	))
	mux.Handle("/healthz", healthcheck.Chain(healthcheck.LivenessHandler(), common...))
	mux.Handle("/api/admin/status", healthcheck.Chain(
		healthcheck.AdminStatusHandler(logger, routes.Evaluator),
		append(common, limited("admin"), admin)...,
	))
	mux.Handle("/api/admin/features", healthcheck.Chain(
		healthcheck.AdminFeaturesHandler(routes.Features),
		append(common, limited("admin"), admin)...,
	))
}

func registerMetricsRoute(mux *http.ServeMux, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	mux.Handle("/metrics", metricsCollector.Handler())
}

func startServer(ctx context.Context, wg *sync.WaitGroup, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
