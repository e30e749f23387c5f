package state

import (
	"context"
	"time"
)

// Component is the persisted state of one reported component.
type Component struct {
	Value  string `json:"value"`
	Status string `json:"status"`
}

// Snapshot captures the persisted health state for one environment.
type Snapshot struct {
	Components  map[string]Component `json:"components"`
	EvaluatedAt time.Time            `json:"evaluated_at"`
}

// State stores snapshots for all environments.
type State struct {
	Environments map[string]Snapshot `json:"environments"`
}

// Store defines the interface for persisting state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}
