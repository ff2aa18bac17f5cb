package domain

import "time"

// Default state block markers.
const (
	DefaultStartMarker = "<state-start>"
	DefaultEndMarker   = "<state-end>"

	// LegacyStartMarker and LegacyEndMarker wrap the block inside an HTML comment
	// so the host hides it from the rendered chat.
	LegacyStartMarker = "<!--<|state|>"
	LegacyEndMarker   = "</|state|>-->"
)

// DefaultFunctionTimeout applies when a FunctionDefinition does not set one.
const DefaultFunctionTimeout = 2000 * time.Millisecond

// Field constants for stackable list items.
const (
	KeyField   = "key"
	CountField = "count"
)
