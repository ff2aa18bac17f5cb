package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// conditionSteps bounds a single condition evaluation.
const conditionSteps = 100_000

// EvalCondition evaluates a boolean expression. Maps in env are exposed as
// read-only records supporting both attribute and index access, and the "_"
// helper module is always bound. The JavaScript-style operators &&, ||, !,
// === and !== and the names true, false and null are accepted as well.
func EvalCondition(ctx context.Context, expr string, env map[string]any) (bool, error) {
	thread := &starlark.Thread{Name: "condition"}
	thread.SetMaxExecutionSteps(conditionSteps)
	stop := context.AfterFunc(ctx, func() { thread.Cancel(ctx.Err().Error()) })
	defer stop()

	bindings := starlark.StringDict{
		"_":     utilModule,
		"true":  starlark.True,
		"false": starlark.False,
		"null":  starlark.None,
	}
	for k, v := range env {
		bindings[k] = toRecordValue(v)
	}

	v, err := starlark.EvalOptions(fileOptions, thread, "condition", normalizeExpr(expr), bindings)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", expr, err)
	}
	return bool(v.Truth()), nil
}

// normalizeExpr rewrites JavaScript logical operators outside string literals.
func normalizeExpr(expr string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(expr) {
				i++
				b.WriteByte(expr[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		rest := expr[i:]
		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case strings.HasPrefix(rest, "&&"):
			b.WriteString(" and ")
			i++
		case strings.HasPrefix(rest, "||"):
			b.WriteString(" or ")
			i++
		case strings.HasPrefix(rest, "==="):
			b.WriteString("==")
			i += 2
		case strings.HasPrefix(rest, "!=="):
			b.WriteString("!=")
			i += 2
		case strings.HasPrefix(rest, "!="):
			b.WriteString("!=")
			i++
		case c == '!':
			b.WriteString(" not ")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// record is a read-only view over a map for use in conditions.
type record struct {
	m map[string]any
}

var (
	_ starlark.HasAttrs = (*record)(nil)
	_ starlark.Mapping  = (*record)(nil)
)

func toRecordValue(v any) starlark.Value {
	switch x := v.(type) {
	case map[string]any:
		return &record{m: x}
	case []any:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			elems[i] = toRecordValue(e)
		}
		l := starlark.NewList(elems)
		l.Freeze()
		return l
	}
	return toStarlark(v)
}

func (r *record) String() string        { return fmt.Sprintf("<record %d keys>", len(r.m)) }
func (r *record) Type() string          { return "record" }
func (r *record) Freeze()               {}
func (r *record) Truth() starlark.Bool  { return starlark.True }
func (r *record) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: record") }

// Attr returns None for missing keys so that optional fields can be tested.
func (r *record) Attr(name string) (starlark.Value, error) {
	v, ok := r.m[name]
	if !ok {
		return starlark.None, nil
	}
	return toRecordValue(v), nil
}

func (r *record) AttrNames() []string {
	names := make([]string, 0, len(r.m))
	for k := range r.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r *record) Get(k starlark.Value) (starlark.Value, bool, error) {
	s, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("record key must be a string, got %s", k.Type())
	}
	v, ok := r.m[s]
	if !ok {
		return nil, false, nil
	}
	return toRecordValue(v), true, nil
}
