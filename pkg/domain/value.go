package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type tombstone struct{}

func (tombstone) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Tombstone marks a list slot as deleted pending reconciliation.
var Tombstone any = tombstone{}

// IsTombstone reports whether v is the Tombstone sentinel.
func IsTombstone(v any) bool {
	_, ok := v.(tombstone)
	return ok
}

type undefined struct{}

func (undefined) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Undefined is produced by coercing the literal "undefined". Writing it to a path
// removes the key.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// AsStackable returns v as a map when it carries a non-empty key and a numeric count.
func AsStackable(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if !Truthy(m[KeyField]) {
		return nil, false
	}
	if _, ok := Numeric(m[CountField]); !ok {
		return nil, false
	}
	return m, true
}

// Numeric returns v as a float64 only when v is already a number.
func Numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToNumber converts numbers and numeric strings. Absent values count as zero.
func ToNumber(v any) (float64, bool) {
	if n, ok := Numeric(v); ok {
		return n, true
	}
	switch x := v.(type) {
	case nil:
		return 0, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	if IsUndefined(v) || IsTombstone(v) {
		return 0, true
	}
	return 0, false
}

// Truthy follows the usual dynamic-language rules for scalars.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case map[string]any, []any:
		return true
	}
	if IsUndefined(v) || IsTombstone(v) {
		return false
	}
	if n, ok := Numeric(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

// LooseEqual compares two values, treating numbers and their decimal string
// forms as equal. Containers are compared structurally.
func LooseEqual(a, b any) bool {
	if na, ok := Numeric(a); ok {
		if nb, ok := ToNumber(b); ok && isNumberLike(b) {
			return na == nb
		}
		return false
	}
	if _, ok := Numeric(b); ok {
		return LooseEqual(b, a)
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, exists := y[k]
			if !exists || !LooseEqual(v, w) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !LooseEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func isNumberLike(v any) bool {
	if _, ok := Numeric(v); ok {
		return true
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// DeepCopy clones maps and lists recursively. Scalars are returned as-is.
func DeepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = DeepCopy(val)
		}
		return out
	}
	return v
}
