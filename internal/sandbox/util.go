package sandbox

import (
	"encoding/json"
	"sort"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// utilModule is bound to "_" inside functions. Every helper returns new
// values and never mutates its arguments.
var utilModule = &starlarkstruct.Module{
	Name: "_",
	Members: starlark.StringDict{
		"get":       starlark.NewBuiltin("_.get", utilGet),
		"set":       starlark.NewBuiltin("_.set", utilSet),
		"has":       starlark.NewBuiltin("_.has", utilHas),
		"keys":      starlark.NewBuiltin("_.keys", utilKeys),
		"clone":     starlark.NewBuiltin("_.clone", utilClone),
		"merge":     starlark.NewBuiltin("_.merge", utilMerge),
		"to_json":   starlark.NewBuiltin("_.to_json", utilToJSON),
		"from_json": starlark.NewBuiltin("_.from_json", utilFromJSON),
	},
}

func unpackObject(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, extra ...any) (map[string]any, error) {
	var obj starlark.Value
	pairs := append([]any{"obj", &obj}, extra...)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, pairs...); err != nil {
		return nil, err
	}
	goVal, err := fromStarlark(obj)
	if err != nil {
		return nil, err
	}
	m, _ := goVal.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func utilGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		path string
		def  starlark.Value = starlark.None
	)
	m, err := unpackObject(b, args, kwargs, "path", &path, "default?", &def)
	if err != nil {
		return nil, err
	}
	if v, ok := domain.GetPath(m, path); ok {
		return toStarlark(v), nil
	}
	return def, nil
}

func utilSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		path string
		val  starlark.Value
	)
	m, err := unpackObject(b, args, kwargs, "path", &path, "value", &val)
	if err != nil {
		return nil, err
	}
	goVal, err := fromStarlark(val)
	if err != nil {
		return nil, err
	}
	if err := domain.SetPath(m, path, goVal); err != nil {
		return nil, err
	}
	return toStarlark(m), nil
}

func utilHas(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	m, err := unpackObject(b, args, kwargs, "path", &path)
	if err != nil {
		return nil, err
	}
	_, ok := domain.GetPath(m, path)
	return starlark.Bool(ok), nil
}

func utilKeys(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	m, err := unpackObject(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return toStarlark(toAnySlice(keys)), nil
}

func utilClone(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	goVal, err := fromStarlark(v)
	if err != nil {
		return nil, err
	}
	return toStarlark(goVal), nil
}

// merge(a, b) deep-merges b over a.
func utilMerge(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var other starlark.Value
	m, err := unpackObject(b, args, kwargs, "other", &other)
	if err != nil {
		return nil, err
	}
	src, err := fromStarlark(other)
	if err != nil {
		return nil, err
	}
	if sm, ok := src.(map[string]any); ok {
		deepMerge(m, sm)
	}
	return toStarlark(m), nil
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

func utilToJSON(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	goVal, err := fromStarlark(v)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(goVal)
	if err != nil {
		return nil, err
	}
	return starlark.String(data), nil
}

func utilFromJSON(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return toStarlark(v), nil
}
