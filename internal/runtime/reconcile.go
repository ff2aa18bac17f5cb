package runtime

import (
	"slices"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// Reconcile compacts the lists at paths: tombstones are dropped (order is
// preserved) and stackable items sharing a key are merged into the first one.
// With sweep set, every list in the static tree is reconciled.
//
// Deeper paths go first: compacting an outer list shifts the indexes that
// nested paths such as "inv.1.items" are expressed in.
func Reconcile(state *domain.State, paths []string, sweep bool) {
	if sweep {
		sweepMap(state.Static)
		return
	}
	ordered := slices.Clone(paths)
	slices.SortStableFunc(ordered, func(a, b string) int {
		return len(domain.SplitPath(b)) - len(domain.SplitPath(a))
	})
	for _, path := range ordered {
		list, ok := lookupList(state.Static, path)
		if !ok {
			continue
		}
		// SetPath cannot fail here: the path was just resolved.
		_ = domain.SetPath(state.Static, path, Compact(list))
	}
}

// Compact returns list without tombstones and with stackables merged by key.
// Non-stackable items are kept as they are.
func Compact(list []any) []any {
	out := make([]any, 0, len(list))
	firsts := make(map[string]map[string]any)
	for _, item := range list {
		if domain.IsTombstone(item) || domain.IsUndefined(item) {
			continue
		}
		if stack, ok := domain.AsStackable(item); ok {
			k := stackKey(stack[domain.KeyField])
			if first, seen := firsts[k]; seen {
				have, _ := domain.Numeric(first[domain.CountField])
				n, _ := domain.Numeric(stack[domain.CountField])
				first[domain.CountField] = have + n
				continue
			}
			firsts[k] = stack
		}
		out = append(out, item)
	}
	return out
}

func stackKey(v any) string {
	if n, ok := domain.Numeric(v); ok {
		return asString(n)
	}
	return asString(v)
}

func sweepMap(m map[string]any) {
	for k, v := range m {
		m[k] = sweepValue(v)
	}
}

func sweepValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		sweepMap(x)
		return x
	case []any:
		for i := range x {
			x[i] = sweepValue(x[i])
		}
		return Compact(x)
	}
	return v
}
