package domain

import "errors"

// ErrFunctionNotFound is returned when EVAL names a function that is neither in state.func
// nor in the native registry.
var ErrFunctionNotFound = errors.New("function not found")

// ErrNetworkDisabled is returned by the sandbox network primitives when the function
// definition does not grant network access.
var ErrNetworkDisabled = errors.New("network access is disabled for this function")

// ErrSandboxTimeout is returned when a function exceeds its time budget.
var ErrSandboxTimeout = errors.New("function timed out")

// ErrMessageNotFound is returned by a MessageStore for an index outside the chat.
var ErrMessageNotFound = errors.New("message not found")

// ErrInvalidPath is returned when a dotted path cannot be resolved or written.
var ErrInvalidPath = errors.New("invalid path")

// ErrMalformedCommand is returned by handlers when required parameters are missing.
var ErrMalformedCommand = errors.New("malformed command")
