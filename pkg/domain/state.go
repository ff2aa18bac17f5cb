package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is the single persisted aggregate carried inside the chat.
type State struct {
	// Static is the nested world data (characters, inventories, flags).
	Static map[string]any `json:"static"`

	// Volatile holds deferred writes, applied once their trigger is due.
	Volatile []TimedEntry `json:"volatile"`

	// ResponseSummary is a set-like list of summary lines.
	ResponseSummary []string `json:"responseSummary"`

	// Func holds user-registered sandboxed functions.
	Func []FunctionDefinition `json:"func"`
}

// NewState returns the Initial State: every field present and empty.
func NewState() *State {
	return &State{
		Static:          make(map[string]any),
		Volatile:        []TimedEntry{},
		ResponseSummary: []string{},
		Func:            []FunctionDefinition{},
	}
}

// Normalize fills in missing top-level fields.
func (s *State) Normalize() *State {
	if s.Static == nil {
		s.Static = make(map[string]any)
	}
	if s.Volatile == nil {
		s.Volatile = []TimedEntry{}
	}
	if s.ResponseSummary == nil {
		s.ResponseSummary = []string{}
	}
	if s.Func == nil {
		s.Func = []FunctionDefinition{}
	}
	return s
}

// Clone returns a deep copy of the state. A nil receiver yields the Initial State.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	c := &State{
		Static:          DeepCopy(s.Static).(map[string]any),
		Volatile:        make([]TimedEntry, len(s.Volatile)),
		ResponseSummary: append([]string{}, s.ResponseSummary...),
		Func:            make([]FunctionDefinition, len(s.Func)),
	}
	if c.Static == nil {
		c.Static = make(map[string]any)
	}
	for i, e := range s.Volatile {
		e.Value = DeepCopy(e.Value)
		c.Volatile[i] = e
	}
	for i, f := range s.Func {
		f.ParamNames = append([]string(nil), f.ParamNames...)
		c.Func[i] = f
	}
	return c
}

// UnmarshalJSON decodes a persisted state and normalizes it.
func (s *State) UnmarshalJSON(data []byte) error {
	type plain State
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = State(p)
	s.Normalize()
	return nil
}

// FindFunc returns the function registered under name.
func (s *State) FindFunc(name string) (FunctionDefinition, bool) {
	for _, f := range s.Func {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionDefinition{}, false
}

// AddSummary appends line unless it is already present. It reports whether the
// summary changed.
func (s *State) AddSummary(line string) bool {
	for _, existing := range s.ResponseSummary {
		if existing == line {
			return false
		}
	}
	s.ResponseSummary = append(s.ResponseSummary, line)
	return true
}

// Merge folds partial into s. Static objects are merged recursively and any
// other static value is replaced. Volatile entries are appended, summary lines
// added set-wise, and functions replaced by name.
func (s *State) Merge(partial *State) {
	if partial == nil {
		return
	}
	s.Normalize()
	mergeMaps(s.Static, partial.Static)
	for _, e := range partial.Volatile {
		e.Value = DeepCopy(e.Value)
		s.Volatile = append(s.Volatile, e)
	}
	for _, line := range partial.ResponseSummary {
		s.AddSummary(line)
	}
	for _, f := range partial.Func {
		replaced := false
		for i := range s.Func {
			if s.Func[i].Name == f.Name {
				s.Func[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			s.Func = append(s.Func, f)
		}
	}
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeMaps(existing, sub)
				continue
			}
		}
		dst[k] = DeepCopy(v)
	}
}

// TimedEntry is a deferred write kept in State.Volatile.
type TimedEntry struct {
	Path       string  `json:"path"`
	Value      any     `json:"value"`
	IsRealTime bool    `json:"isRealTime"`
	TriggerAt  Trigger `json:"triggerAt"`
	Reason     string  `json:"reason"`
}

// Due reports whether the entry should fire at the given round and wall-clock time.
func (e TimedEntry) Due(round int, now time.Time) bool {
	if e.IsRealTime {
		return !e.TriggerAt.Time.IsZero() && !now.Before(e.TriggerAt.Time)
	}
	return round >= e.TriggerAt.Round
}

// Trigger is either a round number or an absolute timestamp.
// It is persisted as a JSON number or an ISO-8601 string respectively.
type Trigger struct {
	Round int
	Time  time.Time
}

// ISOLayout matches the millisecond UTC format used in persisted chats.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// RoundTrigger builds a round based trigger.
func RoundTrigger(round int) Trigger { return Trigger{Round: round} }

// TimeTrigger builds a wall-clock trigger.
func TimeTrigger(t time.Time) Trigger { return Trigger{Time: t.UTC()} }

func (t Trigger) MarshalJSON() ([]byte, error) {
	if !t.Time.IsZero() {
		return json.Marshal(t.Time.UTC().Format(ISOLayout))
	}
	return json.Marshal(t.Round)
}

func (t *Trigger) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*t = Trigger{Round: int(v)}
	case string:
		if ts, err := ParseTimestamp(v); err == nil {
			*t = TimeTrigger(ts)
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid trigger %q", v)
		}
		*t = Trigger{Round: n}
	case nil:
		*t = Trigger{}
	default:
		return fmt.Errorf("invalid trigger %s", string(data))
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339, a few date-time layouts (read as UTC) and epoch milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FunctionDefinition is a user-registered snippet run by the sandbox through EVAL.
type FunctionDefinition struct {
	Name          string   `json:"func_name"`
	ParamNames    []string `json:"func_params,omitempty"`
	Body          string   `json:"func_body"`
	TimeoutMs     int      `json:"timeout,omitempty"`
	NetworkAccess bool     `json:"network_access,omitempty"`
}

// Timeout returns the execution budget, falling back to DefaultFunctionTimeout.
func (f FunctionDefinition) Timeout() time.Duration {
	if f.TimeoutMs <= 0 {
		return DefaultFunctionTimeout
	}
	return time.Duration(f.TimeoutMs) * time.Millisecond
}

// Message is one chat entry as seen through the host message store.
type Message struct {
	IsUser bool   `json:"is_user"`
	Text   string `json:"mes"`
}
