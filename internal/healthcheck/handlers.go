package healthcheck

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nholik/phenotype-health/internal/envcheck"
	"github.com/nholik/phenotype-health/internal/features"
	"github.com/nholik/phenotype-health/internal/health"
	"github.com/rs/zerolog"
)

// Evaluator runs one health evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context) (health.Evaluation, error)
	Meta() health.Meta
}

// AdminStatus is the payload of the admin status endpoint.
type AdminStatus struct {
	Report      health.Report   `json:"report"`
	Environment envcheck.Report `json:"environment"`
	Flags       features.Flags  `json:"flags"`
}

// HealthHandler serves /health. Healthy and degraded answer 200, unhealthy
// 503. An evaluation error or panic answers 503 with the generic failure
// body; includeDetails adds the error text and must be false in production.
func HealthHandler(logger zerolog.Logger, evaluator Evaluator, includeDetails bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		evaluation, err := evaluate(r.Context(), evaluator)
		if err != nil {
			logger.Error().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, health.NewErrorReport(evaluator.Meta(), err, includeDetails))
			return
		}
		report := evaluation.Report
		if report.Status != health.StatusHealthy {
			logger.Warn().
				Str("status", string(report.Status)).
				Str("request_id", RequestIDFrom(r.Context())).
				Msg("health check not healthy")
		}
		writeJSON(w, report.Status.HTTPStatus(), report)
	}
}

// LivenessHandler serves /healthz. It never touches dependencies.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// AdminStatusHandler serves the full evaluation to administrators.
func AdminStatusHandler(logger zerolog.Logger, evaluator Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFrom(r.Context()); ok {
			logger.Debug().Str("subject", claims.Subject).Msg("admin status requested")
		}
		evaluation, err := evaluate(r.Context(), evaluator)
		if err != nil {
			logger.Error().Err(err).Msg("admin status evaluation failed")
			writeJSON(w, http.StatusServiceUnavailable, health.NewErrorReport(evaluator.Meta(), err, true))
			return
		}
		writeJSON(w, http.StatusOK, AdminStatus{
			Report:      evaluation.Report,
			Environment: evaluation.Environment,
			Flags:       evaluation.Flags,
		})
	}
}

// AdminFeaturesHandler serves every feature flag.
func AdminFeaturesHandler(flags *features.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, flags.Flags())
	}
}

func evaluate(ctx context.Context, evaluator Evaluator) (evaluation health.Evaluation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("health evaluation panicked: %v", r)
		}
	}()
	return evaluator.Evaluate(ctx)
}
