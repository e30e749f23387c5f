package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nholik/phenotype-health/internal/config"
	"github.com/nholik/phenotype-health/internal/health"
	"github.com/nholik/phenotype-health/internal/logging"
	"github.com/spf13/cobra"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one health evaluation and print the report",
	Long: `check runs a single evaluation and prints the same JSON body GET /health
would return. It exits non-zero when the system is unhealthy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)

		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()

		a, err := buildApp(ctx, logger, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")

		evaluation, err := a.aggregator.Evaluate(ctx)
		if err != nil {
			_ = encoder.Encode(health.NewErrorReport(a.aggregator.Meta(), err, !cfg.IsProduction()))
			return errUnhealthy
		}
		if err := encoder.Encode(evaluation.Report); err != nil {
			return err
		}
		if evaluation.Report.Status == health.StatusUnhealthy {
			return errUnhealthy
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "upper bound for the whole evaluation")
}
