package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// NativeFunction is a Go implementation reachable through EVAL.
// It receives the live batch state and the EVAL arguments, and returns
// commands to splice into the batch.
type NativeFunction func(ctx context.Context, state *domain.State, args []any) ([]domain.Command, error)

// Registry manages the available native functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]NativeFunction
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]NativeFunction),
	}
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn NativeFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (NativeFunction, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names lists registered functions in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute looks up a function by name and executes it.
// Returns domain.ErrFunctionNotFound if the function is not registered.
func (r *Registry) Execute(ctx context.Context, name string, state *domain.State, args []any) ([]domain.Command, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFunctionNotFound, name)
	}
	return fn(ctx, state, args)
}
