package sandbox

import (
	"fmt"
	"math"
	"sort"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"go.starlark.net/starlark"
)

// toStarlark converts a JSON-shaped Go value. Integral floats become Ints so
// that scripts can use them as indexes and counters.
func toStarlark(v any) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case string:
		return starlark.String(v)
	case int:
		return starlark.MakeInt(v)
	case int64:
		return starlark.MakeInt64(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return starlark.MakeInt64(int64(v))
		}
		return starlark.Float(v)
	case []any:
		elems := make([]starlark.Value, 0, len(v))
		for _, e := range v {
			elems = append(elems, toStarlark(e))
		}
		return starlark.NewList(elems)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(v))
		for _, k := range keys {
			_ = d.SetKey(starlark.String(k), toStarlark(v[k]))
		}
		return d
	}
	if n, ok := domain.Numeric(v); ok {
		return toStarlark(n)
	}
	if domain.IsTombstone(v) || domain.IsUndefined(v) {
		return starlark.None
	}
	return starlark.String(fmt.Sprint(v))
}

// fromStarlark converts a script value back into the JSON-shaped model.
func fromStarlark(v starlark.Value) (any, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		if n, ok := v.Int64(); ok {
			return float64(n), nil
		}
		f, _ := starlark.AsFloat(v)
		return f, nil
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case *starlark.List:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := fromStarlark(v.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, 0, len(v))
		for _, item := range v {
			e, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, kv := range v.Items() {
			k, ok := starlark.AsString(kv[0])
			if !ok {
				return nil, fmt.Errorf("dict key %s is not a string", kv[0])
			}
			e, err := fromStarlark(kv[1])
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	case *record:
		return domain.DeepCopy(v.m), nil
	}
	if snap, ok := snapshot(v); ok {
		return snap, nil
	}
	return nil, fmt.Errorf("cannot store value of type %s", v.Type())
}

// commandsFrom reads the derived commands a function returned: a dict or a
// list of dicts shaped {"command": "SET", "params": [...]}. Other values are
// not commands and yield nothing.
func commandsFrom(v starlark.Value) ([]domain.Command, error) {
	var items []starlark.Value
	switch v := v.(type) {
	case *starlark.Dict:
		items = []starlark.Value{v}
	case *starlark.List:
		for i := 0; i < v.Len(); i++ {
			items = append(items, v.Index(i))
		}
	case starlark.Tuple:
		items = v
	default:
		return nil, nil
	}

	cmds := make([]domain.Command, 0, len(items))
	for _, item := range items {
		d, ok := item.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("returned command must be a dict, got %s", item.Type())
		}
		raw, err := fromStarlark(d)
		if err != nil {
			return nil, err
		}
		m := raw.(map[string]any)
		name, _ := m["command"].(string)
		t, ok := domain.ParseCommandType(name)
		if !ok {
			return nil, fmt.Errorf("returned command has unknown type %q", name)
		}
		var params []any
		switch p := m["params"].(type) {
		case []any:
			params = p
		case nil:
		default:
			params = []any{p}
		}
		cmds = append(cmds, domain.NewCommand(t, domain.OriginDerived, params...))
	}
	return cmds, nil
}
