package domain

import (
	"reflect"
)

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for reports and CLI output.
type StateDiff struct {
	// Static contains only changed, added or deleted leaves, keyed by dotted path.
	// Lists are compared as a whole. For deletions the path maps to nil.
	Static map[string]any `json:"static,omitempty"`

	// VolatileAdded and VolatileRemoved hold timed entries that appeared or disappeared.
	VolatileAdded   []TimedEntry `json:"volatile_added,omitempty"`
	VolatileRemoved []TimedEntry `json:"volatile_removed,omitempty"`

	// SummaryAppended lists summary lines not present before.
	SummaryAppended []string `json:"summary_appended,omitempty"`

	// FuncChanged is set when the function table differs.
	FuncChanged bool `json:"func_changed,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}
	if oldState == nil {
		oldState = NewState()
	}

	diff := &StateDiff{
		Static:          diffStatic(oldState.Static, newState.Static),
		VolatileAdded:   missingFrom(newState.Volatile, oldState.Volatile),
		VolatileRemoved: missingFrom(oldState.Volatile, newState.Volatile),
		FuncChanged:     (len(oldState.Func) > 0 || len(newState.Func) > 0) && !reflect.DeepEqual(oldState.Func, newState.Func),
	}

	seen := make(map[string]bool, len(oldState.ResponseSummary))
	for _, s := range oldState.ResponseSummary {
		seen[s] = true
	}
	for _, s := range newState.ResponseSummary {
		if !seen[s] {
			diff.SummaryAppended = append(diff.SummaryAppended, s)
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffStatic(old, new map[string]any) map[string]any {
	before := Flatten(old)
	after := Flatten(new)
	delta := make(map[string]any)

	for k, newVal := range after {
		oldVal, exists := before[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range before {
		if _, exists := after[k]; !exists {
			delta[k] = nil
		}
	}

	// Return nil if delta is empty so omitempty can remove the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// Flatten maps every non-map leaf of m to its dotted path. Empty maps are kept as leaves.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok && len(child) > 0 {
				walk(p, child)
				continue
			}
			out[p] = v
		}
	}
	walk("", m)
	return out
}

func missingFrom(entries, other []TimedEntry) []TimedEntry {
	var out []TimedEntry
	for _, e := range entries {
		found := false
		for _, o := range other {
			if reflect.DeepEqual(e, o) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, e)
		}
	}
	return out
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return len(d.Static) == 0 &&
		len(d.VolatileAdded) == 0 &&
		len(d.VolatileRemoved) == 0 &&
		len(d.SummaryAppended) == 0 &&
		!d.FuncChanged
}
