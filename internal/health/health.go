package health

import (
	"net/http"

	"github.com/nholik/phenotype-health/internal/features"
)

// Status is the aggregated system status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// HTTPStatus maps the status to the response code of the health endpoint.
func (s Status) HTTPStatus() int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Service states beyond probe.StateUp, probe.StateDown and
// probe.StateNotConfigured.
const (
	PhenotypesLoaded  = "loaded"
	PhenotypesEmpty   = "empty"
	PhenotypesUnknown = "unknown"
	Configured        = "configured"
	Missing           = "missing"
)

// FailureMessage is the only error text clients see for unexpected failures.
const FailureMessage = "Health check failed"

// Services reports the state of each dependency.
type Services struct {
	Database       string `json:"database"`
	Phenotypes     string `json:"phenotypes"`
	Storage        string `json:"storage"`
	Authentication string `json:"authentication"`
	Embedding      string `json:"embedding"`
	RateLimit      string `json:"rateLimit"`
}

// Stats carries catalog size and database latency in milliseconds.
type Stats struct {
	PhenotypeCount  int64  `json:"phenotypeCount"`
	DatabaseLatency *int64 `json:"databaseLatency"`
}

// Meta identifies the running deployment.
type Meta struct {
	GitCommit    string `json:"gitCommit"`
	DeploymentID string `json:"deploymentId"`
	Environment  string `json:"environment"`
}

// Issues names the core conditions that failed.
type Issues struct {
	Database       string   `json:"database,omitempty"`
	Phenotypes     string   `json:"phenotypes,omitempty"`
	MissingEnvVars []string `json:"missingEnvVars,omitempty"`
}

// Report is the body of a health response. Stats and Features are only set
// when the core is healthy; Issues only when it is not.
type Report struct {
	Status       Status            `json:"status"`
	Services     Services          `json:"services"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Stats        *Stats            `json:"stats,omitempty"`
	Meta         Meta              `json:"meta"`
	Features     *features.Summary `json:"features,omitempty"`
	Issues       *Issues           `json:"issues,omitempty"`
}

// ErrorReport is the body returned when evaluation itself failed.
type ErrorReport struct {
	Status  Status `json:"status"`
	Error   string `json:"error"`
	Meta    Meta   `json:"meta"`
	Details string `json:"details,omitempty"`
}

// NewErrorReport builds an ErrorReport. Details are only attached when
// includeDetails is set.
func NewErrorReport(meta Meta, err error, includeDetails bool) ErrorReport {
	report := ErrorReport{
		Status: StatusUnhealthy,
		Error:  FailureMessage,
		Meta:   meta,
	}
	if includeDetails && err != nil {
		report.Details = err.Error()
	}
	return report
}
