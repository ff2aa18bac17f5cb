package memory

import (
	"context"
	"sync"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Store implements ports.VariableStore in memory.
// Safe for concurrent use.
type Store struct {
	state *domain.State
	mu    sync.RWMutex
}

// NewStore creates a new in-memory store holding the Initial State.
func NewStore() *Store {
	return &Store{state: domain.NewState()}
}

// State returns a deep copy so callers cannot mutate the stored state.
func (s *Store) State(ctx context.Context) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone(), nil
}

// ReplaceState stores a deep copy of state.
func (s *Store) ReplaceState(ctx context.Context, state *domain.State) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = copied
	return nil
}

// MergeState folds partial into the stored state.
func (s *Store) MergeState(ctx context.Context, partial *domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Merge(partial.Clone())
	return nil
}
