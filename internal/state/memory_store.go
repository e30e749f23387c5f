package state

import (
	"context"
	"sync"
)

// MemoryStore keeps state for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: State{Environments: map[string]Snapshot{}}}
}

// Load returns a copy of the stored state.
func (s *MemoryStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := State{Environments: make(map[string]Snapshot, len(s.state.Environments))}
	for env, snapshot := range s.state.Environments {
		out.Environments[env] = snapshot.clone()
	}
	return out, nil
}

// Save replaces the stored state.
func (s *MemoryStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{Environments: make(map[string]Snapshot, len(state.Environments))}
	for env, snapshot := range state.Environments {
		s.state.Environments[env] = snapshot.clone()
	}
	return nil
}

func (s Snapshot) clone() Snapshot {
	components := make(map[string]Component, len(s.Components))
	for name, component := range s.Components {
		components[name] = component
	}
	return Snapshot{Components: components, EvaluatedAt: s.EvaluatedAt}
}
