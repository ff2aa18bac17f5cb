package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Store implements ports.VariableStore as a single JSON file.
type Store struct {
	Path string

	mu sync.Mutex
}

// New creates a Store backed by path.
// If path is empty, it defaults to ".sam/state.json".
func New(path string) *Store {
	if path == "" {
		path = filepath.Join(".sam", "state.json")
	}
	return &Store{Path: path}
}

// State reads the file. A missing file yields the Initial State.
func (s *Store) State(ctx context.Context) (*domain.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// ReplaceState writes the state atomically.
func (s *Store) ReplaceState(ctx context.Context, state *domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(state)
}

// MergeState reads, merges and writes back under the store lock.
func (s *Store) MergeState(ctx context.Context, partial *domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	current.Merge(partial)
	return s.write(current)
}

func (s *Store) read() (*domain.State, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewState(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// write persists the state to a temporary file, syncs it and then renames it
// over the destination.
func (s *Store) write(state *domain.State) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(s.Path); err == nil {
		if err := os.Remove(s.Path); err != nil {
			return fmt.Errorf("failed to remove existing state file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
