package sandbox

import (
	"fmt"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"go.starlark.net/starlark"
)

// stateValue exposes the live batch state to scripts. Writes go straight
// into the underlying domain.State.
type stateValue struct {
	s *domain.State
}

var (
	_ starlark.Value    = (*stateValue)(nil)
	_ starlark.HasAttrs = (*stateValue)(nil)
)

func (v *stateValue) String() string        { return "<state>" }
func (v *stateValue) Type() string          { return "state" }
func (v *stateValue) Freeze()               {}
func (v *stateValue) Truth() starlark.Bool  { return starlark.True }
func (v *stateValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: state") }

var stateAttrs = []string{"add_summary", "delete", "get", "set", "static", "summary"}

func (v *stateValue) AttrNames() []string { return stateAttrs }

func (v *stateValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "get":
		return starlark.NewBuiltin("state.get", v.get), nil
	case "set":
		return starlark.NewBuiltin("state.set", v.set), nil
	case "delete":
		return starlark.NewBuiltin("state.delete", v.delete), nil
	case "add_summary":
		return starlark.NewBuiltin("state.add_summary", v.addSummary), nil
	case "static":
		if v.s.Static == nil {
			v.s.Static = map[string]any{}
		}
		return &liveMap{m: v.s.Static}, nil
	case "summary":
		// Lines are appended through add_summary only.
		summary := toStarlark(toAnySlice(v.s.ResponseSummary))
		summary.Freeze()
		return summary, nil
	}
	return nil, nil
}

// get(path, default=None) returns a copy of the value at path.
func (v *stateValue) get(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		path string
		def  starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "default?", &def); err != nil {
		return nil, err
	}
	val, ok := domain.GetPath(v.s.Static, path)
	if !ok {
		return def, nil
	}
	return toStarlark(val), nil
}

// set(path, value) writes value at path.
func (v *stateValue) set(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		path string
		val  starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path, "value", &val); err != nil {
		return nil, err
	}
	goVal, err := fromStarlark(val)
	if err != nil {
		return nil, err
	}
	if err := domain.SetPath(v.s.Static, path, goVal); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// delete(path) removes the key at path; list slots are tombstoned.
func (v *stateValue) delete(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	return starlark.Bool(domain.DeletePath(v.s.Static, path)), nil
}

func (v *stateValue) addSummary(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var line string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "line", &line); err != nil {
		return nil, err
	}
	return starlark.Bool(v.s.AddSummary(line)), nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
