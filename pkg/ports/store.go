package ports

import (
	"context"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// VariableStore holds the working state between batches.
type VariableStore interface {
	// State returns a copy of the current state. An empty store yields the Initial State.
	State(ctx context.Context) (*domain.State, error)

	// ReplaceState overwrites the stored state.
	ReplaceState(ctx context.Context, state *domain.State) error

	// MergeState folds a partial state into the stored one (see domain.State.Merge).
	MergeState(ctx context.Context, partial *domain.State) error
}
