package ports

import (
	"context"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// FunctionLoader retrieves function definitions stored outside the chat,
// e.g. a directory of documented scripts.
type FunctionLoader interface {
	// Functions returns every definition the backend knows about.
	Functions(ctx context.Context) ([]domain.FunctionDefinition, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload of function libraries.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying library changes.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
