// Package rules advances the world clock and evaluates per-entity status rules.
//
// Event-driven rules produce commands that are returned to the caller so they
// run inside the same batch. Time-driven rules write the status value in place.
package rules

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LynxShu/ST-var-manager/internal/sandbox"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// Default locations inside state.static.
const (
	DefaultTimePath     = "world.time"
	DefaultEntityPath   = "character"
	DefaultStatusField  = "splst"
	DefaultFunctionName = "advance_time"

	// LegacyFunctionName is the name used by chats written for the original script library.
	LegacyFunctionName = "advanceTimeAndUpdateStatus"
)

const (
	placeholderSelf = "{{self}}"
	placeholderTime = "{{world.time}}"
)

// Engine evaluates status rules.
type Engine struct {
	timePath    string
	entityPath  string
	statusField string
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPaths overrides where the clock, the entities and their statuses live.
func WithPaths(timePath, entityPath, statusField string) Option {
	return func(e *Engine) {
		if timePath != "" {
			e.timePath = timePath
		}
		if entityPath != "" {
			e.entityPath = entityPath
		}
		if statusField != "" {
			e.statusField = statusField
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a rule engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		timePath:    DefaultTimePath,
		entityPath:  DefaultEntityPath,
		statusField: DefaultStatusField,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register exposes AdvanceTime under the given names (DefaultFunctionName and
// LegacyFunctionName when none are given).
func (e *Engine) Register(r *registry.Registry, names ...string) {
	if len(names) == 0 {
		names = []string{DefaultFunctionName, LegacyFunctionName}
	}
	for _, name := range names {
		r.Register(name, e.AdvanceTime)
	}
}

var incrementPattern = regexp.MustCompile(`(-?\d+)\s*([dhms])`)

// ParseIncrement reads durations such as "1h", "-30m", "2d" or "1d2h30m".
func ParseIncrement(s string) (time.Duration, bool) {
	matches := incrementPattern.FindAllStringSubmatch(strings.ToLower(s), -1)
	if len(matches) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		unit := map[string]time.Duration{"d": 24 * time.Hour, "h": time.Hour, "m": time.Minute, "s": time.Second}[m[2]]
		total += time.Duration(n) * unit
	}
	return total, true
}

// AdvanceTime is a registry.NativeFunction. args[0] is the increment.
func (e *Engine) AdvanceTime(ctx context.Context, state *domain.State, args []any) ([]domain.Command, error) {
	if len(args) == 0 || fmt.Sprint(args[0]) == "" {
		return nil, fmt.Errorf("%w: advance_time expects a duration such as 1h", domain.ErrMalformedCommand)
	}
	incStr := fmt.Sprint(args[0])
	inc, ok := ParseIncrement(incStr)
	if !ok {
		e.logger.WarnContext(ctx, "unrecognized time increment, clock unchanged", "increment", incStr)
	}

	raw, ok := domain.GetPath(state.Static, e.timePath)
	if !ok || raw == nil || raw == "" {
		return nil, fmt.Errorf("no current time at %s", e.timePath)
	}
	current, err := domain.ParseTimestamp(fmt.Sprint(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid time at %s: %w", e.timePath, err)
	}
	now := current.Add(inc)
	nowStr := now.Format(domain.ISOLayout)
	if err := domain.SetPath(state.Static, e.timePath, nowStr); err != nil {
		return nil, err
	}

	entities, _ := domain.GetPath(state.Static, e.entityPath)
	entityMap, _ := entities.(map[string]any)

	var cmds []domain.Command
	for _, entityKey := range sortedKeys(entityMap) {
		entity, ok := entityMap[entityKey].(map[string]any)
		if !ok {
			continue
		}
		statuses, _ := entity[e.statusField].(map[string]any)
		for _, statusKey := range sortedKeys(statuses) {
			statusMap, ok := statuses[statusKey].(map[string]any)
			if !ok {
				continue
			}
			var status Status
			if err := decodeStatus(statusMap, &status); err != nil {
				e.logger.WarnContext(ctx, "invalid status rules", "entity", entityKey, "status", statusKey, "error", err)
				continue
			}
			if status.Rules == nil {
				continue
			}
			self := domain.JoinPath(e.entityPath, entityKey, e.statusField, statusKey)

			if status.Rules.EventDriven != nil {
				cmds = append(cmds, e.eventCommands(ctx, state, entity, status, self, nowStr)...)
			}
			if status.Rules.TimeBased != nil {
				if v, changed := e.timeValue(ctx, status, statusMap, entity, now); changed {
					e.logger.InfoContext(ctx, "status updated by time", "entity", entityKey, "status", status.Name, "from", status.Value, "to", v)
					statusMap["value"] = v
				}
			}
		}
	}

	e.logger.DebugContext(ctx, "time advanced", "time", nowStr, "commands", len(cmds))
	return cmds, nil
}

func decodeStatus(in map[string]any, out *Status) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func (e *Engine) eventCommands(ctx context.Context, state *domain.State, entity map[string]any, status Status, self, nowStr string) []domain.Command {
	env := map[string]any{
		"state": map[string]any{
			"static":          state.Static,
			"responseSummary": toAny(state.ResponseSummary),
		},
		"character": entity,
	}

	var cmds []domain.Command
	for _, ev := range status.Rules.EventDriven.Events {
		if ev.Condition == "" || len(ev.Actions) == 0 {
			continue
		}
		ok, err := sandbox.EvalCondition(ctx, ev.Condition, env)
		if err != nil {
			e.logger.WarnContext(ctx, "event condition failed", "status", status.Name, "event", ev.Name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		for _, a := range ev.Actions {
			t, known := domain.ParseCommandType(a.Command)
			if !known {
				e.logger.WarnContext(ctx, "event action has unknown command", "status", status.Name, "command", a.Command)
				continue
			}
			value := a.Value
			if s, isString := value.(string); isString {
				value = strings.ReplaceAll(s, placeholderTime, nowStr)
			}
			params := append([]any{strings.ReplaceAll(a.Path, placeholderSelf, self), value}, a.ExtraParams...)
			cmds = append(cmds, domain.NewCommand(t, domain.OriginDerived, params...))
		}
	}
	return cmds
}

// timeValue computes the new status value. changed is false when the value
// should stay as it is.
func (e *Engine) timeValue(ctx context.Context, status Status, statusMap, entity map[string]any, now time.Time) (any, bool) {
	rules := status.Rules.TimeBased
	var next any

	switch rules.Mode {
	case ModeCyclic:
		env := map[string]any{
			"day":       now.Day(),
			"month":     int(now.Month()),
			"year":      now.Year(),
			"dayOfWeek": int(now.Weekday()),
		}
		var matched bool
		next, matched = e.matchCase(ctx, status.Name, rules.Cases, env)
		if !matched {
			next = rules.Default
		}

	case ModeLinear:
		if rules.TriggerField == "" {
			return nil, false
		}
		start, ok := e.startTime(statusMap, entity, rules.TriggerField)
		if !ok {
			next = rules.Default
			break
		}
		env := map[string]any{"progress_days": int(math.Floor(now.Sub(start).Hours() / 24))}
		var matched bool
		if next, matched = e.matchCase(ctx, status.Name, rules.Stages, env); !matched {
			next = status.Value
		}

	default:
		return nil, false
	}

	if next == nil || reflect.DeepEqual(next, status.Value) {
		return nil, false
	}
	return next, true
}

func (e *Engine) matchCase(ctx context.Context, statusName string, cases []Case, env map[string]any) (any, bool) {
	for _, c := range cases {
		ok, err := sandbox.EvalCondition(ctx, c.Condition, env)
		if err != nil {
			e.logger.WarnContext(ctx, "time condition failed", "status", statusName, "error", err)
			continue
		}
		if ok {
			return c.SetValue, true
		}
	}
	return nil, false
}

func (e *Engine) startTime(statusMap, entity map[string]any, field string) (time.Time, bool) {
	raw, ok := domain.GetPath(statusMap, field)
	if !ok {
		raw, ok = domain.GetPath(entity, field)
	}
	if !ok || !domain.Truthy(raw) {
		return time.Time{}, false
	}
	var s string
	if n, isNum := domain.Numeric(raw); isNum {
		s = strconv.FormatInt(int64(n), 10)
	} else {
		s = fmt.Sprint(raw)
	}
	t, err := domain.ParseTimestamp(s)
	return t, err == nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
