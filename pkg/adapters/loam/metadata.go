package loam

// FunctionMetadata is the frontmatter of a library function document.
// The document body is the function source.
type FunctionMetadata struct {
	// Name defaults to the file name without extension.
	Name   string   `json:"name" mapstructure:"name"`
	Params []string `json:"params" mapstructure:"params"`

	// Timeout is in milliseconds.
	Timeout       int  `json:"timeout" mapstructure:"timeout"`
	NetworkAccess bool `json:"network_access" mapstructure:"network_access"`
}
