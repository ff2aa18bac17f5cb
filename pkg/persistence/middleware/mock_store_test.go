package middleware_test

import (
	"context"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/ports"
)

// MockStore keeps whatever it is given, so tests can inspect the raw envelope.
type MockStore struct {
	state *domain.State
}

func NewMockStore() *MockStore {
	return &MockStore{state: domain.NewState()}
}

func (s *MockStore) State(ctx context.Context) (*domain.State, error) {
	return s.state.Clone(), nil
}

func (s *MockStore) ReplaceState(ctx context.Context, state *domain.State) error {
	s.state = state.Clone()
	return nil
}

func (s *MockStore) MergeState(ctx context.Context, partial *domain.State) error {
	s.state.Merge(partial)
	return nil
}

var _ ports.VariableStore = (*MockStore)(nil)
