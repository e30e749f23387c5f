package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Store reads the phenotype catalog from PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open builds a pool for databaseURL. Connections are established lazily,
// so a database that is down at startup does not prevent the process from
// serving health responses.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url must not be empty")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping runs a trivial round-trip query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// CountPhenotypes returns the number of rows in the phenotype catalog.
func (s *Store) CountPhenotypes(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM phenotypes`
	var count int64
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count phenotypes: %w", err)
	}
	return count, nil
}

// WaitReady pings the database with exponential backoff until it answers or
// maxElapsed passes.
func (s *Store) WaitReady(ctx context.Context, logger zerolog.Logger, maxElapsed time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = maxElapsed
	policy.Reset()

	attempt := 0
	operation := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := s.Ping(pingCtx)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("database not ready")
		}
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// Close releases pooled connections.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
