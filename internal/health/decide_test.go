package health

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/nholik/phenotype-health/internal/envcheck"
	"github.com/nholik/phenotype-health/internal/probe"
)

var validEnv = envcheck.Report{IsValid: true, Missing: []string{}, Warnings: []string{}}

func TestDecide(t *testing.T) {
	up := probe.Result{Name: probe.DatabaseName, Healthy: true}
	down := probe.Result{Name: probe.DatabaseName, Kind: probe.KindTimeout}
	embeddingDown := probe.Result{Name: probe.EmbeddingName, Kind: probe.KindUnreachable}
	embeddingOff := probe.Result{Name: probe.EmbeddingName, Healthy: true, Kind: probe.KindNotConfigured}

	cases := []struct {
		name       string
		in         Inputs
		wantStatus Status
		wantIssues *Issues
	}{
		{
			name:       "all healthy",
			in:         Inputs{Database: up, PhenotypeCount: 3, Environment: validEnv, Optional: []probe.Result{embeddingOff}},
			wantStatus: StatusHealthy,
		},
		{
			name:       "optional down degrades",
			in:         Inputs{Database: up, PhenotypeCount: 3, Environment: validEnv, Optional: []probe.Result{embeddingDown}},
			wantStatus: StatusDegraded,
		},
		{
			name:       "database down wins over optional",
			in:         Inputs{Database: down, Environment: validEnv, Optional: []probe.Result{embeddingDown}},
			wantStatus: StatusUnhealthy,
			wantIssues: &Issues{Database: "timeout"},
		},
		{
			name:       "empty catalog is core failure",
			in:         Inputs{Database: up, PhenotypeCount: 0, Environment: validEnv},
			wantStatus: StatusUnhealthy,
			wantIssues: &Issues{Phenotypes: "no phenotypes loaded"},
		},
		{
			name: "missing env vars",
			in: Inputs{
				Database:       up,
				PhenotypeCount: 1,
				Environment:    envcheck.Report{Missing: []string{"DATABASE_URL", "OPENAI_API_KEY"}},
			},
			wantStatus: StatusUnhealthy,
			wantIssues: &Issues{MissingEnvVars: []string{"DATABASE_URL", "OPENAI_API_KEY"}},
		},
		{
			name: "every core condition failing",
			in: Inputs{
				Database:    probe.Result{Name: probe.DatabaseName},
				Environment: envcheck.Report{Missing: []string{"BLOB_READ_WRITE_TOKEN"}},
			},
			wantStatus: StatusUnhealthy,
			wantIssues: &Issues{Database: "unreachable", MissingEnvVars: []string{"BLOB_READ_WRITE_TOKEN"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Decide(tc.in)
			if decision.Status != tc.wantStatus {
				t.Fatalf("expected %s, got %s", tc.wantStatus, decision.Status)
			}
			if !reflect.DeepEqual(decision.Issues, tc.wantIssues) {
				t.Fatalf("expected issues %+v, got %+v", tc.wantIssues, decision.Issues)
			}
			if tc.in.CoreHealthy() != (tc.wantStatus != StatusUnhealthy) {
				t.Fatalf("CoreHealthy disagrees with status %s", decision.Status)
			}
		})
	}
}

func TestDecide_LatencyNeverChangesStatus(t *testing.T) {
	slow := probe.Result{Name: probe.DatabaseName, Healthy: true, Measured: true, Latency: 1 << 40}
	decision := Decide(Inputs{Database: slow, PhenotypeCount: 1, Environment: validEnv})
	if decision.Status != StatusHealthy {
		t.Fatalf("expected healthy despite latency, got %s", decision.Status)
	}
}

func TestStatusHTTPStatus(t *testing.T) {
	if StatusHealthy.HTTPStatus() != http.StatusOK || StatusDegraded.HTTPStatus() != http.StatusOK {
		t.Fatalf("healthy and degraded must map to 200")
	}
	if StatusUnhealthy.HTTPStatus() != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy must map to 503")
	}
}
