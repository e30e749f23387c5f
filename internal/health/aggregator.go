package health

import (
	"context"
	"fmt"
	"time"

	"github.com/nholik/phenotype-health/internal/envcheck"
	"github.com/nholik/phenotype-health/internal/features"
	"github.com/nholik/phenotype-health/internal/probe"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultCountTimeout = 2 * time.Second

// Catalog counts the records of the primary catalog.
type Catalog interface {
	CountPhenotypes(ctx context.Context) (int64, error)
}

// Observer receives evaluation measurements. A negative phenotypeCount
// means the count is unknown.
type Observer interface {
	ObserveProbe(name string, healthy bool)
	ObserveProbeLatency(name string, latency time.Duration)
	ObserveEvaluation(status string, phenotypeCount int64)
}

// Evaluation is everything gathered during one health evaluation.
type Evaluation struct {
	Report      Report
	Environment envcheck.Report
	Flags       features.Flags
	Probes      []probe.Result
}

// Aggregator combines environment validation, feature flags and dependency
// probes into one status. It keeps no state between evaluations.
type Aggregator struct {
	logger       zerolog.Logger
	env          *envcheck.Validator
	features     *features.Evaluator
	database     probe.Probe
	catalog      Catalog
	optional     []probe.Probe
	meta         Meta
	observer     Observer
	countTimeout time.Duration
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithOptional registers optional dependency probes. Their failure degrades
// but never fails the system.
func WithOptional(probes ...probe.Probe) Option {
	return func(a *Aggregator) {
		for _, p := range probes {
			if p != nil {
				a.optional = append(a.optional, p)
			}
		}
	}
}

// WithLookup overrides how environment variables are read.
func WithLookup(lookup envcheck.LookupFunc) Option {
	return func(a *Aggregator) {
		a.env = envcheck.NewValidator(lookup)
		a.features = features.New(lookup)
	}
}

// WithObserver records measurements for every evaluation.
func WithObserver(observer Observer) Option {
	return func(a *Aggregator) {
		a.observer = observer
	}
}

// WithCountTimeout bounds the catalog count query.
func WithCountTimeout(timeout time.Duration) Option {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.countTimeout = timeout
		}
	}
}

// NewAggregator builds an Aggregator around the database probe and catalog.
func NewAggregator(logger zerolog.Logger, database probe.Probe, catalog Catalog, meta Meta, opts ...Option) *Aggregator {
	a := &Aggregator{
		logger:       logger,
		env:          envcheck.NewValidator(nil),
		features:     features.New(nil),
		database:     database,
		catalog:      catalog,
		meta:         meta,
		countTimeout: defaultCountTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Meta returns the deployment metadata attached to every report.
func (a *Aggregator) Meta() Meta {
	return a.meta
}

// Evaluate runs one health evaluation. The database branch and every
// optional probe run concurrently and are all awaited before deciding.
// An error means the evaluation itself failed unexpectedly: the catalog
// could not be counted or a branch panicked.
func (a *Aggregator) Evaluate(ctx context.Context) (Evaluation, error) {
	envReport := a.env.Validate()
	flags := a.features.Flags()
	summary := a.features.Summary()

	var (
		database probe.Result
		count    int64
		optional = make([]probe.Result, len(a.optional))
	)

	var group errgroup.Group
	group.Go(recovered(probe.DatabaseName, func() error {
		database = a.database.Run(ctx)
		if !database.Healthy || a.catalog == nil {
			return nil
		}
		countCtx, cancel := context.WithTimeout(ctx, a.countTimeout)
		defer cancel()
		n, err := a.catalog.CountPhenotypes(countCtx)
		if err != nil {
			return fmt.Errorf("count phenotypes: %w", err)
		}
		count = n
		return nil
	}))
	for i, p := range a.optional {
		group.Go(recovered(p.Name(), func() error {
			optional[i] = p.Run(ctx)
			return nil
		}))
	}
	if err := group.Wait(); err != nil {
		a.logger.Error().Err(err).Msg("health evaluation failed")
		if a.observer != nil {
			a.observer.ObserveEvaluation(string(StatusUnhealthy), -1)
		}
		return Evaluation{}, err
	}

	decision := Decide(Inputs{
		Database:       database,
		PhenotypeCount: count,
		Environment:    envReport,
		Optional:       optional,
	})

	report := Report{
		Status:       decision.Status,
		Services:     a.services(database, count, optional),
		Dependencies: a.dependencies(optional),
		Meta:         a.meta,
		Issues:       decision.Issues,
	}
	if decision.Status != StatusUnhealthy {
		report.Stats = &Stats{
			PhenotypeCount:  count,
			DatabaseLatency: database.LatencyMS(),
		}
		report.Features = &summary
	}

	probes := append([]probe.Result{database}, optional...)
	a.observe(report, probes, count)

	return Evaluation{
		Report:      report,
		Environment: envReport,
		Flags:       flags,
		Probes:      probes,
	}, nil
}

func (a *Aggregator) services(database probe.Result, count int64, optional []probe.Result) Services {
	services := Services{
		Database:       database.State(),
		Phenotypes:     PhenotypesUnknown,
		Storage:        a.configured(envcheck.BlobReadWriteToken),
		Authentication: a.configured(envcheck.AuthSecret),
		Embedding:      probe.StateNotConfigured,
		RateLimit:      probe.StateNotConfigured,
	}
	if database.Healthy {
		services.Phenotypes = PhenotypesEmpty
		if count > 0 {
			services.Phenotypes = PhenotypesLoaded
		}
	}
	for _, result := range optional {
		switch result.Name {
		case probe.EmbeddingName:
			services.Embedding = result.State()
		case probe.RateLimitName:
			services.RateLimit = result.State()
		}
	}
	return services
}

func (a *Aggregator) dependencies(optional []probe.Result) map[string]string {
	var deps map[string]string
	for _, result := range optional {
		if result.Name == probe.EmbeddingName || result.Name == probe.RateLimitName {
			continue
		}
		if deps == nil {
			deps = make(map[string]string)
		}
		deps[result.Name] = result.State()
	}
	return deps
}

func (a *Aggregator) configured(v envcheck.Var) string {
	if a.env.Present(v.Name) {
		return Configured
	}
	return Missing
}

func (a *Aggregator) observe(report Report, probes []probe.Result, count int64) {
	if a.observer == nil {
		return
	}
	for _, result := range probes {
		if result.Kind == probe.KindNotConfigured {
			continue
		}
		a.observer.ObserveProbe(result.Name, result.Healthy)
		if result.Measured {
			a.observer.ObserveProbeLatency(result.Name, result.Latency)
		}
	}
	a.observer.ObserveEvaluation(string(report.Status), count)
}

func recovered(branch string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s check panicked: %v", branch, r)
			}
		}()
		return fn()
	}
}
