// Package loam loads reusable function definitions from a Loam document repository.
//
// Each document describes one function: the frontmatter carries the
// FunctionMetadata and the content is the body run by the sandbox.
//
//	---
//	name: heal
//	params: [target, amount]
//	timeout: 500
//	---
//	return target + amount;
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/aretw0/loam"
)

// WatchPattern selects the documents the Library reacts to.
const WatchPattern = "**/*.{md,json,yaml,yml}"

// Library implements ports.FunctionLoader and ports.Watchable on top of Loam.
type Library struct {
	Repo *loam.TypedRepository[FunctionMetadata]
}

// New creates a Library backed by the given typed repository.
func New(repo *loam.TypedRepository[FunctionMetadata]) *Library {
	return &Library{Repo: repo}
}

// Open initializes a read-only Loam repository at path and wraps it.
func Open(path string) (*Library, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid library path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[FunctionMetadata](repo)), nil
}

// Functions implements ports.FunctionLoader. Definitions are sorted by name.
// Two documents resolving to the same name are rejected.
func (l *Library) Functions(ctx context.Context) ([]domain.FunctionDefinition, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}

	seen := make(map[string]string, len(docs))
	defs := make([]domain.FunctionDefinition, 0, len(docs))
	for _, doc := range docs {
		name := doc.Data.Name
		if name == "" {
			name = filepath.Base(trimExtension(doc.ID))
		}
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: function '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID

		body := strings.TrimSpace(doc.Content)
		if body == "" {
			return nil, fmt.Errorf("function '%s' (%s) has an empty body", name, doc.ID)
		}

		defs = append(defs, domain.FunctionDefinition{
			Name:          name,
			ParamNames:    append([]string(nil), doc.Data.Params...),
			Body:          body,
			TimeoutMs:     doc.Data.Timeout,
			NetworkAccess: doc.Data.NetworkAccess,
		})
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Watch implements ports.Watchable. Bursts of file events collapse into a
// single pending signal.
func (l *Library) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, WatchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
