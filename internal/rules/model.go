package rules

// Status is one special status attached to an entity (entity.splst.<key>).
type Status struct {
	Name  string `mapstructure:"name"`
	Value any    `mapstructure:"value"`
	Rules *Rules `mapstructure:"rules"`
}

// Rules groups the two independent rule classes of a status.
type Rules struct {
	EventDriven *EventDriven `mapstructure:"event_driven_update"`
	TimeBased   *TimeBased   `mapstructure:"time_based_update"`
}

// EventDriven holds condition/action rules.
type EventDriven struct {
	Events []EventRule `mapstructure:"events"`
}

// EventRule fires its actions when Condition holds.
type EventRule struct {
	Name      string   `mapstructure:"name"`
	Condition string   `mapstructure:"condition"`
	Actions   []Action `mapstructure:"actions"`
}

// Action becomes one preparsed command. Path and string values may contain
// the {{self}} and {{world.time}} placeholders.
type Action struct {
	Command     string `mapstructure:"command"`
	Path        string `mapstructure:"path"`
	Value       any    `mapstructure:"value"`
	ExtraParams []any  `mapstructure:"extra_params"`
}

// Time-based modes.
const (
	ModeCyclic = "cyclic"
	ModeLinear = "linear"
)

// TimeBased derives the status value from the world clock.
type TimeBased struct {
	Mode string `mapstructure:"mode"`

	// Cases are matched against day, month, year and dayOfWeek (cyclic).
	Cases []Case `mapstructure:"cases"`

	// Stages are matched against progress_days (linear).
	Stages []Case `mapstructure:"stages"`

	// TriggerField locates the start timestamp, first on the status, then on the entity.
	TriggerField string `mapstructure:"trigger_field"`

	// Default applies when no cyclic case matches, or when a linear status has no valid start.
	// A nil default means "leave unchanged".
	Default any `mapstructure:"default"`
}

// Case pairs a condition with the value to set when it holds.
type Case struct {
	Condition string `mapstructure:"condition"`
	SetValue  any    `mapstructure:"set_value"`
}
