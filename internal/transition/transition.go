package transition

import (
	"sort"

	"github.com/nholik/phenotype-health/internal/health"
	"github.com/nholik/phenotype-health/internal/state"
)

// Transition captures a component whose reported value changed.
type Transition struct {
	Component      string        `json:"component"`
	PreviousValue  string        `json:"previousValue,omitempty"`
	CurrentValue   string        `json:"currentValue"`
	PreviousStatus health.Status `json:"previousStatus,omitempty"`
	CurrentStatus  health.Status `json:"currentStatus"`
}

// Recovered reports whether the component returned to healthy.
func (t Transition) Recovered() bool {
	return t.CurrentStatus == health.StatusHealthy && t.PreviousStatus != "" && t.PreviousStatus != health.StatusHealthy
}

// Detect compares a previous snapshot with current components. On the
// first run, and for components seen for the first time, only non-healthy
// components are reported; afterwards every value change is.
func Detect(prev *state.Snapshot, current map[string]Component) []Transition {
	prevComponents := map[string]state.Component{}
	if prev != nil && prev.Components != nil {
		prevComponents = prev.Components
	}
	firstRun := len(prevComponents) == 0

	transitions := make([]Transition, 0)
	for _, name := range sortedNames(current) {
		now := current[name]
		before, hadPrev := prevComponents[name]

		switch {
		case firstRun || !hadPrev:
			if now.Status == health.StatusHealthy {
				continue
			}
		case before.Value == now.Value:
			continue
		}

		transitions = append(transitions, Transition{
			Component:      name,
			PreviousValue:  before.Value,
			CurrentValue:   now.Value,
			PreviousStatus: health.Status(before.Status),
			CurrentStatus:  now.Status,
		})
	}

	sort.SliceStable(transitions, func(i, j int) bool {
		// overall leads every batch
		if transitions[i].Component == Overall {
			return transitions[j].Component != Overall
		}
		return false
	})

	return transitions
}

// Snapshot converts components into their persisted form.
func Snapshot(components map[string]Component) map[string]state.Component {
	out := make(map[string]state.Component, len(components))
	for name, component := range components {
		out[name] = state.Component{Value: component.Value, Status: string(component.Status)}
	}
	return out
}
