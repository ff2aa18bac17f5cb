package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Library implements ports.FunctionLoader using an in-memory map.
type Library struct {
	mu    sync.RWMutex
	funcs map[string]domain.FunctionDefinition
}

// NewLibrary creates a library holding the given definitions.
func NewLibrary(defs ...domain.FunctionDefinition) (*Library, error) {
	l := &Library{funcs: make(map[string]domain.FunctionDefinition)}
	for _, d := range defs {
		if err := l.Add(d); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add registers or replaces a definition.
func (l *Library) Add(def domain.FunctionDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("function missing name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[def.Name] = def
	return nil
}

// Functions returns all definitions ordered by name.
func (l *Library) Functions(ctx context.Context) ([]domain.FunctionDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.FunctionDefinition, 0, len(l.funcs))
	for _, f := range l.funcs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name }) // Deterministic order
	return out, nil
}
