package probe

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	DatabaseName           = "database"
	defaultDatabaseTimeout = 2 * time.Second
)

var errNoDatabase = errors.New("database not configured")

// Pinger performs a trivial round-trip query against a data store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database probes the primary data store.
type Database struct {
	logger  zerolog.Logger
	pinger  Pinger
	timeout time.Duration
}

// NewDatabase returns a database probe. A nil pinger always reports unhealthy
// because the database is not optional.
func NewDatabase(logger zerolog.Logger, pinger Pinger, timeout time.Duration) *Database {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}
	return &Database{logger: logger, pinger: pinger, timeout: timeout}
}

// Name implements Probe.
func (d *Database) Name() string {
	return DatabaseName
}

// Run implements Probe. Errors from the pinger are logged and reported as an
// unhealthy result with no latency.
func (d *Database) Run(ctx context.Context) Result {
	if d.pinger == nil {
		return failed(DatabaseName, KindUnreachable, errNoDatabase)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.pinger.Ping(ctx); err != nil {
		result := failed(DatabaseName, classify(err), err)
		d.logger.Warn().Err(err).Str("kind", string(result.Kind)).Msg("database probe failed")
		return result
	}
	return healthy(DatabaseName, time.Since(start))
}
