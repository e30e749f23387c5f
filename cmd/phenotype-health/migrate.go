package main

import (
	"context"
	"errors"
	"time"

	"github.com/nholik/phenotype-health/internal/config"
	"github.com/nholik/phenotype-health/internal/logging"
	"github.com/nholik/phenotype-health/internal/store/migrate"
	"github.com/nholik/phenotype-health/internal/store/postgres"
	"github.com/spf13/cobra"
)

var (
	migrateTarget int64
	migrateWait   time.Duration
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the phenotype catalog schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newMigrationRunner()
		if err != nil {
			return err
		}
		if migrateWait > 0 {
			if err := waitForDatabase(cmd.Context(), migrateWait); err != nil {
				return err
			}
		}
		return runner.Up(cmd.Context())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newMigrationRunner()
		if err != nil {
			return err
		}
		return runner.Status(cmd.Context())
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration, or down to --to",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newMigrationRunner()
		if err != nil {
			return err
		}
		return runner.Down(cmd.Context(), migrateTarget)
	},
}

func init() {
	migrateUpCmd.Flags().DurationVar(&migrateWait, "wait", 0, "wait this long for the database to accept connections")
	migrateDownCmd.Flags().Int64Var(&migrateTarget, "to", 0, "version to roll back to")
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd, migrateDownCmd)
}

func newMigrationRunner() (migrate.Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return migrate.Runner{}, err
	}
	if cfg.DatabaseURL == "" {
		return migrate.Runner{}, errors.New("DATABASE_URL is required for migrations")
	}
	return migrate.New(cfg.DatabaseURL, logging.NewWithLevel(cfg.LogLevel))
}

// waitForDatabase blocks until the database answers, for deploys where the
// migration job can start before PostgreSQL.
func waitForDatabase(ctx context.Context, maxElapsed time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.WaitReady(ctx, logging.NewWithLevel(cfg.LogLevel), maxElapsed)
}
