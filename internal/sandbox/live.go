package sandbox

import (
	"fmt"
	"sort"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"go.starlark.net/starlark"
)

// liveMap is a write-through view over a map inside the batch state.
// Index assignment stores into the underlying map; nested maps and lists are
// handed out as live views too.
type liveMap struct {
	m map[string]any
}

var (
	_ starlark.HasSetKey       = (*liveMap)(nil)
	_ starlark.IterableMapping = (*liveMap)(nil)
	_ starlark.Sequence        = (*liveMap)(nil)
	_ starlark.HasAttrs        = (*liveMap)(nil)
)

// liveList is the list counterpart of liveMap. The slice is re-read from its
// parent on every access so that append can replace it.
type liveList struct {
	load  func() []any
	store func([]any)
}

var (
	_ starlark.HasSetIndex = (*liveList)(nil)
	_ starlark.Iterable    = (*liveList)(nil)
	_ starlark.HasAttrs    = (*liveList)(nil)
)

func liveChild(get func() any, set func(any)) starlark.Value {
	switch v := get().(type) {
	case map[string]any:
		return &liveMap{m: v}
	case []any:
		return &liveList{
			load: func() []any {
				l, _ := get().([]any)
				return l
			},
			store: func(l []any) { set(l) },
		}
	default:
		return toStarlark(v)
	}
}

func (m *liveMap) String() string        { return fmt.Sprintf("<dict %d keys>", len(m.m)) }
func (m *liveMap) Type() string          { return "dict" }
func (m *liveMap) Freeze()               {}
func (m *liveMap) Truth() starlark.Bool  { return len(m.m) > 0 }
func (m *liveMap) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: dict") }
func (m *liveMap) Len() int              { return len(m.m) }

func (m *liveMap) keys() []string {
	keys := make([]string, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *liveMap) child(k string) starlark.Value {
	return liveChild(func() any { return m.m[k] }, func(v any) { m.m[k] = v })
}

func (m *liveMap) Get(k starlark.Value) (starlark.Value, bool, error) {
	s, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("dict key must be a string, got %s", k.Type())
	}
	if _, ok := m.m[s]; !ok {
		return nil, false, nil
	}
	return m.child(s), true, nil
}

func (m *liveMap) SetKey(k, v starlark.Value) error {
	s, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("dict key must be a string, got %s", k.Type())
	}
	goVal, err := fromStarlark(v)
	if err != nil {
		return err
	}
	m.m[s] = goVal
	return nil
}

func (m *liveMap) Items() []starlark.Tuple {
	keys := m.keys()
	out := make([]starlark.Tuple, len(keys))
	for i, k := range keys {
		out[i] = starlark.Tuple{starlark.String(k), m.child(k)}
	}
	return out
}

func (m *liveMap) Iterate() starlark.Iterator {
	keys := m.keys()
	vals := make([]starlark.Value, len(keys))
	for i, k := range keys {
		vals[i] = starlark.String(k)
	}
	return &sliceIterator{vals: vals}
}

var liveMapAttrs = []string{"get", "items", "keys", "pop", "values"}

func (m *liveMap) AttrNames() []string { return liveMapAttrs }

func (m *liveMap) Attr(name string) (starlark.Value, error) {
	switch name {
	case "get":
		return starlark.NewBuiltin("dict.get", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var (
				key string
				def starlark.Value = starlark.None
			)
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &key, &def); err != nil {
				return nil, err
			}
			if _, ok := m.m[key]; !ok {
				return def, nil
			}
			return m.child(key), nil
		}), nil
	case "keys":
		return starlark.NewBuiltin("dict.keys", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			var out []starlark.Value
			for _, k := range m.keys() {
				out = append(out, starlark.String(k))
			}
			return starlark.NewList(out), nil
		}), nil
	case "values":
		return starlark.NewBuiltin("dict.values", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			var out []starlark.Value
			for _, k := range m.keys() {
				out = append(out, m.child(k))
			}
			return starlark.NewList(out), nil
		}), nil
	case "items":
		return starlark.NewBuiltin("dict.items", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			items := m.Items()
			out := make([]starlark.Value, len(items))
			for i, it := range items {
				out[i] = it
			}
			return starlark.NewList(out), nil
		}), nil
	case "pop":
		return starlark.NewBuiltin("dict.pop", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var (
				key string
				def starlark.Value
			)
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &key, &def); err != nil {
				return nil, err
			}
			v, ok := m.m[key]
			if !ok {
				if def == nil {
					return nil, fmt.Errorf("dict.pop: missing key %q", key)
				}
				return def, nil
			}
			delete(m.m, key)
			return toStarlark(v), nil
		}), nil
	}
	return nil, nil
}

func (l *liveList) String() string        { return fmt.Sprintf("<list %d items>", len(l.load())) }
func (l *liveList) Type() string          { return "list" }
func (l *liveList) Freeze()               {}
func (l *liveList) Truth() starlark.Bool  { return len(l.load()) > 0 }
func (l *liveList) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: list") }
func (l *liveList) Len() int              { return len(l.load()) }

func (l *liveList) Index(i int) starlark.Value {
	return liveChild(
		func() any {
			items := l.load()
			if i >= len(items) {
				return nil
			}
			return items[i]
		},
		func(v any) {
			if items := l.load(); i < len(items) {
				items[i] = v
			}
		},
	)
}

func (l *liveList) SetIndex(i int, v starlark.Value) error {
	items := l.load()
	if i < 0 || i >= len(items) {
		return fmt.Errorf("list index %d out of range [0:%d]", i, len(items))
	}
	goVal, err := fromStarlark(v)
	if err != nil {
		return err
	}
	items[i] = goVal
	return nil
}

func (l *liveList) Iterate() starlark.Iterator {
	n := len(l.load())
	vals := make([]starlark.Value, n)
	for i := range n {
		vals[i] = l.Index(i)
	}
	return &sliceIterator{vals: vals}
}

func (l *liveList) AttrNames() []string { return []string{"append"} }

func (l *liveList) Attr(name string) (starlark.Value, error) {
	if name != "append" {
		return nil, nil
	}
	return starlark.NewBuiltin("list.append", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
			return nil, err
		}
		goVal, err := fromStarlark(v)
		if err != nil {
			return nil, err
		}
		l.store(append(l.load(), goVal))
		return starlark.None, nil
	}), nil
}

type sliceIterator struct {
	vals []starlark.Value
	i    int
}

func (it *sliceIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.vals) {
		return false
	}
	*p = it.vals[it.i]
	it.i++
	return true
}

func (it *sliceIterator) Done() {}

// snapshot copies the value a live view points at.
func snapshot(v starlark.Value) (any, bool) {
	switch x := v.(type) {
	case *liveMap:
		return domain.DeepCopy(x.m), true
	case *liveList:
		return domain.DeepCopy(x.load()), true
	}
	return nil, false
}
