package middleware

import "github.com/LynxShu/ST-var-manager/pkg/ports"

// Middleware allows wrapping a VariableStore to add behavior.
type Middleware func(ports.VariableStore) ports.VariableStore
