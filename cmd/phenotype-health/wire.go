package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nholik/phenotype-health/internal/config"
	"github.com/nholik/phenotype-health/internal/health"
	"github.com/nholik/phenotype-health/internal/metrics"
	"github.com/nholik/phenotype-health/internal/probe"
	"github.com/nholik/phenotype-health/internal/ratelimit"
	"github.com/nholik/phenotype-health/internal/store/postgres"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisStartupTimeout = 2 * time.Second

// app holds the long-lived components built from configuration.
type app struct {
	cfg        config.Config
	aggregator *health.Aggregator
	metrics    *metrics.Metrics
	limiter    ratelimit.Limiter
	closers    []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, logger zerolog.Logger, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	var (
		pinger  probe.Pinger
		catalog health.Catalog
	)
	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			// Reported as database down by the probe rather than refusing to start.
			logger.Error().Err(err).Msg("database pool could not be created")
		} else {
			a.closers = append(a.closers, store.Close)
			pinger = store
			catalog = store
		}
	}

	optional := []probe.Probe{
		probe.NewHTTP(logger, probe.EmbeddingName, cfg.EmbeddingServiceURL, cfg.EmbeddingHealthPath, cfg.EmbeddingTimeout),
	}

	redisProbe, limiter := buildRateLimiting(ctx, logger, cfg, a)
	optional = append(optional, redisProbe)
	a.limiter = limiter

	deps, err := config.LoadDependencyFile(cfg.DependenciesFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	for _, dep := range deps {
		optional = append(optional, probe.NewHTTP(logger, dep.Name, dep.URL, dep.Path, dep.Timeout))
	}

	meta := health.Meta{
		GitCommit:    cfg.GitCommit,
		DeploymentID: cfg.DeploymentID,
		Environment:  cfg.Environment,
	}
	a.aggregator = health.NewAggregator(logger, probe.NewDatabase(logger, pinger, cfg.DatabaseTimeout), catalog, meta,
		health.WithOptional(optional...),
		health.WithObserver(a.metrics),
		health.WithCountTimeout(cfg.DatabaseTimeout),
	)
	return a, nil
}

// buildRateLimiting prefers a shared Redis limiter and falls back to an
// in-process one when Redis is absent or unreachable at startup.
func buildRateLimiting(ctx context.Context, logger zerolog.Logger, cfg config.Config, a *app) (probe.Probe, ratelimit.Limiter) {
	memory := func() ratelimit.Limiter {
		m := ratelimit.NewMemory()
		a.closers = append(a.closers, m.Close)
		return m
	}

	if cfg.RedisURL == "" {
		return probe.NewRedis(logger, nil, 0), memory()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error().Err(fmt.Errorf("parse redis url: %w", err)).Msg("rate limiting falls back to memory")
		return probe.NewRedis(logger, nil, 0), memory()
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, func() { _ = client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, redisStartupTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup; rate limiting falls back to memory")
		return probe.NewRedis(logger, client, 0), memory()
	}
	return probe.NewRedis(logger, client, 0), ratelimit.NewRedis(client, logger)
}
