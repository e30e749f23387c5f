package transition

import (
	"sort"

	"github.com/nholik/phenotype-health/internal/health"
	"github.com/nholik/phenotype-health/internal/probe"
	"github.com/nholik/phenotype-health/internal/state"
)

// Overall is the component name of the aggregate status.
const Overall = "overall"

// Component is one reported value and the status it implies.
type Component struct {
	Value  string
	Status health.Status
}

// Components flattens a report into named components. Core services map
// failures to unhealthy; optional ones to degraded.
func Components(report health.Report) map[string]Component {
	s := report.Services
	components := map[string]Component{
		Overall:          {Value: string(report.Status), Status: report.Status},
		"database":       core(s.Database, s.Database == probe.StateUp),
		"phenotypes":     core(s.Phenotypes, s.Phenotypes == health.PhenotypesLoaded),
		"storage":        core(s.Storage, s.Storage == health.Configured),
		"authentication": optional(s.Authentication, s.Authentication == health.Configured),
		"embedding":      optional(s.Embedding, s.Embedding != probe.StateDown),
		"rateLimit":      optional(s.RateLimit, s.RateLimit != probe.StateDown),
	}
	for name, value := range report.Dependencies {
		components["dependency:"+name] = optional(value, value != probe.StateDown)
	}
	return components
}

// ErrorComponents describes an evaluation that failed outright. Nothing is
// known about individual services, so every component of prev is carried
// over unchanged and only overall turns unhealthy.
func ErrorComponents(prev *state.Snapshot) map[string]Component {
	components := map[string]Component{}
	if prev != nil {
		for name, component := range prev.Components {
			components[name] = Component{Value: component.Value, Status: health.Status(component.Status)}
		}
	}
	components[Overall] = Component{Value: health.FailureMessage, Status: health.StatusUnhealthy}
	return components
}

func core(value string, ok bool) Component {
	if ok {
		return Component{Value: value, Status: health.StatusHealthy}
	}
	return Component{Value: value, Status: health.StatusUnhealthy}
}

func optional(value string, ok bool) Component {
	if ok {
		return Component{Value: value, Status: health.StatusHealthy}
	}
	return Component{Value: value, Status: health.StatusDegraded}
}

func sortedNames(components map[string]Component) []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
