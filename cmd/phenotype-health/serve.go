package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nholik/phenotype-health/internal/auth"
	"github.com/nholik/phenotype-health/internal/config"
	"github.com/nholik/phenotype-health/internal/features"
	"github.com/nholik/phenotype-health/internal/logging"
	"github.com/nholik/phenotype-health/internal/notify"
	"github.com/nholik/phenotype-health/internal/runner"
	"github.com/nholik/phenotype-health/internal/server"
	"github.com/nholik/phenotype-health/internal/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// stateRetention forgets environments, typically previews, that have not
// been evaluated for two weeks.
const stateRetention = 14 * 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /health and, when configured, watch for status transitions",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.NewWithLevel(cfg.LogLevel)
	logger.Info().
		Str("environment", cfg.Environment).
		Int("health_port", cfg.HealthPort).
		Int("metrics_port", cfg.MetricsPort).
		Msg("phenotype-health starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	done := server.Start(ctx, logger, server.Routes{
		Evaluator:      a.aggregator,
		Features:       features.New(nil),
		Issuer:         auth.NewIssuer(cfg.AuthSecret),
		Limiter:        a.limiter,
		RatePerMinute:  cfg.RateLimitPerMinute,
		IncludeDetails: !cfg.IsProduction(),
		TrustForwarded: cfg.TrustProxyHeaders,
		Metrics:        a.metrics,
	}, cfg.HealthPort, cfg.MetricsPort)

	var runErr error
	if cfg.WatchInterval > 0 {
		watcher, err := buildRunner(logger, cfg, a)
		if err != nil {
			stop()
			<-done
			return err
		}
		runErr = watcher.Run(ctx)
	} else {
		<-ctx.Done()
	}

	<-done
	logger.Info().Msg("phenotype-health stopped")
	return runErr
}

func buildRunner(logger zerolog.Logger, cfg config.Config, a *app) (*runner.Runner, error) {
	notifier, err := buildNotifier(logger, cfg)
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{
		runner.WithEvaluator(a.aggregator),
		runner.WithNotifier(notifier),
		runner.WithAlertRecorder(a.metrics),
		runner.WithEnvironment(cfg.Environment),
	}
	if cfg.StatePath != "" {
		opts = append(opts, runner.WithStateStore(state.NewFileStore(cfg.StatePath, logger, state.WithRetention(stateRetention)), &sync.Mutex{}))
	}
	return runner.New(logger, cfg.WatchInterval, opts...), nil
}

func buildNotifier(logger zerolog.Logger, cfg config.Config) (notify.Notifier, error) {
	var notifiers []notify.Notifier
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(logger, cfg.SlackWebhookURL))
	}
	if cfg.AlertWebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(logger, cfg.AlertWebhookURL, cfg.AlertWebhookTemplate)
		if err != nil {
			return nil, fmt.Errorf("configure alert webhook: %w", err)
		}
		notifiers = append(notifiers, webhook)
	}

	var notifier notify.Notifier
	switch len(notifiers) {
	case 0:
		// The runner still logs every transition.
		logger.Info().Msg("no alert destination configured; transitions are only logged")
		return nil, nil
	case 1:
		notifier = notifiers[0]
	default:
		notifier = notify.NewMultiNotifier(notifiers...)
	}
	if cfg.NotifyDryRun {
		notifier = notify.NewDryRunNotifier(logger, notifier)
	}
	return notifier, nil
}
