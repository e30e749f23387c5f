package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nholik/phenotype-health/internal/health"
	"github.com/nholik/phenotype-health/internal/notify"
	"github.com/nholik/phenotype-health/internal/state"
	"github.com/nholik/phenotype-health/internal/transition"
	"github.com/rs/zerolog"
)

// Ticker is the minimal interface needed for driving the runner loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Evaluator runs one health evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context) (health.Evaluation, error)
}

// AlertRecorder counts emitted alerts.
type AlertRecorder interface {
	IncAlertsTotal(component string, status string)
}

// Runner evaluates health on an interval and alerts on transitions.
type Runner struct {
	logger        zerolog.Logger
	interval      time.Duration
	tickerFactory func(time.Duration) Ticker
	runOnce       func(context.Context) error
	evaluator     Evaluator
	notifier      notify.Notifier
	alerts        AlertRecorder
	environment   string
	stateStore    state.Store
	stateMu       *sync.Mutex
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(r *Runner) {
		r.tickerFactory = factory
	}
}

// WithRunOnce overrides the single-cycle execution step.
func WithRunOnce(runOnce func(context.Context) error) Option {
	return func(r *Runner) {
		r.runOnce = runOnce
	}
}

// WithEvaluator sets the evaluator used by the default RunOnce.
func WithEvaluator(evaluator Evaluator) Option {
	return func(r *Runner) {
		r.evaluator = evaluator
	}
}

// WithNotifier sets where transitions are delivered.
func WithNotifier(notifier notify.Notifier) Option {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

// WithAlertRecorder counts delivered transitions.
func WithAlertRecorder(alerts AlertRecorder) Option {
	return func(r *Runner) {
		r.alerts = alerts
	}
}

// WithEnvironment names the deployment the snapshots belong to.
func WithEnvironment(environment string) Option {
	return func(r *Runner) {
		r.environment = environment
	}
}

// WithStateStore overrides where snapshots persist between cycles.
func WithStateStore(store state.Store, lock *sync.Mutex) Option {
	return func(r *Runner) {
		r.stateStore = store
		r.stateMu = lock
	}
}

// New constructs a Runner with the given logger and interval. Snapshots
// stay in memory unless a state store is supplied.
func New(logger zerolog.Logger, interval time.Duration, opts ...Option) *Runner {
	r := &Runner{
		logger:   logger,
		interval: interval,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}
	r.runOnce = r.defaultRunOnce

	for _, opt := range opts {
		opt(r)
	}
	if r.stateStore == nil {
		r.stateStore = state.NewMemoryStore()
	}
	if r.stateMu == nil {
		r.stateMu = &sync.Mutex{}
	}

	return r
}

// Run starts the main loop and blocks until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.New("watch interval must be greater than zero")
	}

	// Run immediately on startup
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error().Err(err).Msg("initial watch cycle failed")
	}

	ticker := r.tickerFactory(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("runner stopped")
			return nil
		case <-ticker.C():
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("watch cycle failed")
			}
		}
	}
}

// RunOnce executes a single cycle of the runner.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.runOnce(ctx)
}

func (r *Runner) defaultRunOnce(ctx context.Context) error {
	if r.evaluator == nil {
		return errors.New("runner has no evaluator")
	}

	evaluation, evalErr := r.evaluator.Evaluate(ctx)
	current := func(prev *state.Snapshot) map[string]transition.Component {
		if evalErr != nil {
			return transition.ErrorComponents(prev)
		}
		return transition.Components(evaluation.Report)
	}
	if evalErr == nil {
		r.logger.Debug().
			Str("status", string(evaluation.Report.Status)).
			Msg("watch cycle evaluated")
	} else {
		r.logger.Error().Err(evalErr).Msg("watch evaluation failed")
	}

	if err := r.detectAndPersist(ctx, current); err != nil {
		return err
	}
	return stageError("evaluate", evalErr)
}

// detectAndPersist notifies about transitions and only then saves the new
// snapshot, so a failed delivery is retried on the next cycle. current
// builds this cycle's components from the previous snapshot.
func (r *Runner) detectAndPersist(ctx context.Context, current func(prev *state.Snapshot) map[string]transition.Component) error {
	key := r.environmentKey()

	return r.withStateLock(func() error {
		loaded, err := r.stateStore.Load(ctx)
		if err != nil {
			return stageError("load state", err)
		}

		var prev *state.Snapshot
		if existing, ok := loaded.Environments[key]; ok {
			copySnapshot := existing
			prev = &copySnapshot
		}

		components := current(prev)
		transitions := transition.Detect(prev, components)
		r.logTransitions(transitions)

		if len(transitions) > 0 && r.notifier != nil {
			if err := r.notifier.Notify(ctx, key, transitions); err != nil {
				return stageError("notify", err)
			}
			for _, change := range transitions {
				if r.alerts != nil {
					r.alerts.IncAlertsTotal(change.Component, string(change.CurrentStatus))
				}
			}
		}

		if loaded.Environments == nil {
			loaded.Environments = map[string]state.Snapshot{}
		}
		loaded.Environments[key] = state.Snapshot{
			Components:  transition.Snapshot(components),
			EvaluatedAt: time.Now().UTC(),
		}
		if err := r.stateStore.Save(ctx, loaded); err != nil {
			return stageError("save state", err)
		}
		return nil
	})
}

func (r *Runner) logTransitions(transitions []transition.Transition) {
	for _, change := range transitions {
		event := r.logger.Info()
		switch change.CurrentStatus {
		case health.StatusUnhealthy:
			event = r.logger.Error()
		case health.StatusDegraded:
			event = r.logger.Warn()
		}
		event.
			Str("component", change.Component).
			Str("previous", change.PreviousValue).
			Str("current", change.CurrentValue).
			Str("status", string(change.CurrentStatus)).
			Msg("health transition detected")
	}
}

func (r *Runner) withStateLock(fn func() error) error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return fn()
}

func (r *Runner) environmentKey() string {
	if r.environment != "" {
		return r.environment
	}
	return "default"
}
