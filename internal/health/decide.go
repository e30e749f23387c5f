package health

import (
	"github.com/nholik/phenotype-health/internal/envcheck"
	"github.com/nholik/phenotype-health/internal/probe"
)

// Inputs are the observations a Decision is made from.
type Inputs struct {
	Database       probe.Result
	PhenotypeCount int64
	Environment    envcheck.Report
	Optional       []probe.Result
}

// Decision is the outcome of Decide.
type Decision struct {
	Status Status
	Issues *Issues
}

// CoreHealthy reports whether the database answers, the catalog is not
// empty and every required variable is present.
func (in Inputs) CoreHealthy() bool {
	return in.Database.Healthy && in.PhenotypeCount > 0 && in.Environment.IsValid
}

// Decide applies the status precedence: any core failure is unhealthy, an
// optional dependency failure on a healthy core is degraded. Latency never
// affects the outcome.
func Decide(in Inputs) Decision {
	status := StatusHealthy
	issues := Issues{}

	switch {
	case !in.Database.Healthy:
		status = worsenStatus(status, StatusUnhealthy)
		issues.Database = databaseIssue(in.Database)
	case in.PhenotypeCount < 1:
		status = worsenStatus(status, StatusUnhealthy)
		issues.Phenotypes = "no phenotypes loaded"
	}

	if !in.Environment.IsValid {
		status = worsenStatus(status, StatusUnhealthy)
		issues.MissingEnvVars = append([]string(nil), in.Environment.Missing...)
	}

	for _, result := range in.Optional {
		if !result.Healthy {
			status = worsenStatus(status, StatusDegraded)
		}
	}

	if status == StatusUnhealthy {
		return Decision{Status: status, Issues: &issues}
	}
	return Decision{Status: status}
}

func databaseIssue(result probe.Result) string {
	if result.Kind == probe.KindNone {
		return string(probe.KindUnreachable)
	}
	return string(result.Kind)
}

func worsenStatus(current, next Status) Status {
	if severity(next) > severity(current) {
		return next
	}
	return current
}

func severity(status Status) int {
	switch status {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
