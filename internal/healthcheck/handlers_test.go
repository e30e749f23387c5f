package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nholik/phenotype-health/internal/envcheck"
	"github.com/nholik/phenotype-health/internal/features"
	"github.com/nholik/phenotype-health/internal/health"
	"github.com/nholik/phenotype-health/internal/probe"
	"github.com/rs/zerolog"
)

type stubProbe struct {
	name   string
	result probe.Result
	panics bool
}

func (s stubProbe) Name() string { return s.name }

func (s stubProbe) Run(context.Context) probe.Result {
	if s.panics {
		panic("database driver crashed")
	}
	result := s.result
	result.Name = s.name
	return result
}

type stubCatalog int64

func (c stubCatalog) CountPhenotypes(context.Context) (int64, error) {
	return int64(c), nil
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate(context.Context) (health.Evaluation, error) {
	return health.Evaluation{}, errors.New("pool exhausted")
}

func (failingEvaluator) Meta() health.Meta {
	return health.Meta{Environment: "production"}
}

var meta = health.Meta{GitCommit: "abc123", DeploymentID: "dpl_1", Environment: "production"}

func fullEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":          "postgres://db/phenotypes",
		"BLOB_READ_WRITE_TOKEN": "blob",
		"OPENAI_API_KEY":        "sk-test",
	}
}

func newAggregator(db probe.Probe, count int64, env map[string]string) *health.Aggregator {
	return health.NewAggregator(zerolog.Nop(), db, stubCatalog(count), meta,
		health.WithLookup(envcheck.MapLookup(env)),
		health.WithOptional(probe.NewHTTP(zerolog.Nop(), probe.EmbeddingName, "", "/health", time.Second)),
	)
}

func serve(t *testing.T, handler http.Handler) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, body
}

func TestHealthHandlerHealthy(t *testing.T) {
	db := stubProbe{name: probe.DatabaseName, result: probe.Result{Healthy: true, Latency: 5 * time.Millisecond, Measured: true}}
	handler := HealthHandler(zerolog.Nop(), newAggregator(db, 100, fullEnv()), false)

	rec, body := serve(t, handler)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body["status"])
	}
	services := body["services"].(map[string]any)
	if services["database"] != "up" || services["phenotypes"] != "loaded" {
		t.Fatalf("unexpected services: %v", services)
	}
	stats := body["stats"].(map[string]any)
	if stats["phenotypeCount"] != float64(100) || stats["databaseLatency"] != float64(5) {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if _, ok := body["issues"]; ok {
		t.Fatalf("healthy response must not carry issues")
	}
	metaBody := body["meta"].(map[string]any)
	if metaBody["gitCommit"] != "abc123" || metaBody["deploymentId"] != "dpl_1" {
		t.Fatalf("unexpected meta: %v", metaBody)
	}
}

func TestHealthHandlerMissingDatabaseURL(t *testing.T) {
	env := fullEnv()
	delete(env, "DATABASE_URL")
	db := stubProbe{name: probe.DatabaseName, result: probe.Result{Healthy: true, Measured: true}}
	handler := HealthHandler(zerolog.Nop(), newAggregator(db, 10, env), false)

	rec, body := serve(t, handler)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	issues := body["issues"].(map[string]any)
	missing := issues["missingEnvVars"].([]any)
	found := false
	for _, name := range missing {
		if name == "DATABASE_URL" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected DATABASE_URL in missing vars, got %v", missing)
	}
	if _, ok := body["stats"]; ok {
		t.Fatalf("unhealthy response must not carry stats")
	}
}

func TestHealthHandlerDatabasePanicIsWellFormed(t *testing.T) {
	db := stubProbe{name: probe.DatabaseName, panics: true}
	handler := HealthHandler(zerolog.Nop(), newAggregator(db, 10, fullEnv()), false)

	rec, body := serve(t, handler)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body["status"] != "unhealthy" || body["error"] != health.FailureMessage {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["details"]; ok {
		t.Fatalf("details must be hidden in production")
	}
}

func TestHealthHandlerErrorDetailsOutsideProduction(t *testing.T) {
	handler := HealthHandler(zerolog.Nop(), failingEvaluator{}, true)

	rec, body := serve(t, handler)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body["details"] != "pool exhausted" {
		t.Fatalf("expected details, got %v", body["details"])
	}
}

func TestHealthHandlerDegradedIs200(t *testing.T) {
	db := stubProbe{name: probe.DatabaseName, result: probe.Result{Healthy: true, Measured: true}}
	embedding := stubProbe{name: probe.EmbeddingName, result: probe.Result{Kind: probe.KindUnreachable}}
	agg := health.NewAggregator(zerolog.Nop(), db, stubCatalog(4), meta,
		health.WithLookup(envcheck.MapLookup(fullEnv())),
		health.WithOptional(embedding),
	)

	rec, body := serve(t, HealthHandler(zerolog.Nop(), agg, false))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "degraded" {
		t.Fatalf("expected degraded, got %v", body["status"])
	}
}

func TestLivenessHandler(t *testing.T) {
	rec, body := serve(t, LivenessHandler())
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected liveness response %d %v", rec.Code, body)
	}
}

func TestAdminStatusHandler(t *testing.T) {
	env := fullEnv()
	env["STRIPE_SECRET_KEY"] = "sk_stripe"
	db := stubProbe{name: probe.DatabaseName, result: probe.Result{Healthy: true, Measured: true}}
	handler := AdminStatusHandler(zerolog.Nop(), newAggregator(db, 2, env))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/status", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload AdminStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Environment.IsValid {
		t.Fatalf("expected valid environment")
	}
	if !payload.Flags.Stripe || payload.Flags.Anthropic {
		t.Fatalf("unexpected flags: %+v", payload.Flags)
	}
	if payload.Report.Status != health.StatusHealthy {
		t.Fatalf("expected healthy report, got %s", payload.Report.Status)
	}
}

func TestAdminFeaturesHandler(t *testing.T) {
	flags := features.New(envcheck.MapLookup(map[string]string{"MAPBOX_ACCESS_TOKEN": "pk"}))
	rec := httptest.NewRecorder()
	AdminFeaturesHandler(flags)(rec, httptest.NewRequest(http.MethodGet, "/api/admin/features", nil))

	var payload features.Flags
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Mapbox || payload.Stripe {
		t.Fatalf("unexpected flags: %+v", payload)
	}
}
