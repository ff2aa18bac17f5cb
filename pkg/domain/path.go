package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SplitPath breaks a dotted path into segments. Bracket indexes are accepted
// ("items[0].name", `map["a.b"]`).
func SplitPath(path string) []string {
	var (
		segs []string
		cur  strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				cur.WriteString(path[i:])
				i = len(path)
				continue
			}
			inner := strings.Trim(path[i+1:i+end], `"'`)
			segs = append(segs, inner)
			i += end
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return segs
}

// JoinPath is the inverse of SplitPath for plain segments.
func JoinPath(segs ...string) string {
	return strings.Join(segs, ".")
}

// ParentPath splits path into its parent and last segment.
func ParentPath(path string) (parent string, last string) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return "", ""
	}
	return JoinPath(segs[:len(segs)-1]...), segs[len(segs)-1]
}

func listIndex(seg string) (int, bool) {
	if seg == "" || (len(seg) > 1 && seg[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// GetPath resolves path inside root. Tombstoned and undefined slots read as absent.
// An empty path returns root itself.
func GetPath(root map[string]any, path string) (any, bool) {
	var node any = root
	for _, seg := range SplitPath(path) {
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[seg]
			if !ok {
				return nil, false
			}
			node = v
		case []any:
			idx, ok := listIndex(seg)
			if !ok || idx >= len(n) {
				return nil, false
			}
			node = n[idx]
		default:
			return nil, false
		}
		if IsTombstone(node) || IsUndefined(node) {
			return nil, false
		}
	}
	return node, true
}

// MaxListPadding bounds how many empty slots a single write may add in front
// of a list index.
const MaxListPadding = 1024

// SetPath writes value at path, creating intermediate containers. A numeric
// segment creates a list, anything else a map. Scalars in the way are replaced.
// An index more than MaxListPadding past the end of its list is rejected with
// ErrInvalidPath. Writing Undefined deletes the key.
func SetPath(root map[string]any, path string, value any) error {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if IsUndefined(value) {
		DeletePath(root, path)
		return nil
	}
	_, err := setIn(root, segs, value)
	return err
}

func setIn(node any, segs []string, value any) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg := segs[0]
	switch n := node.(type) {
	case map[string]any:
		child, err := setIn(n[seg], segs[1:], value)
		if err != nil {
			return nil, err
		}
		n[seg] = child
		return n, nil
	case []any:
		idx, ok := listIndex(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a list index", ErrInvalidPath, seg)
		}
		if idx-len(n) > MaxListPadding {
			return nil, fmt.Errorf("%w: index %d is too far past the end of a list of %d", ErrInvalidPath, idx, len(n))
		}
		for len(n) <= idx {
			n = append(n, nil)
		}
		child, err := setIn(n[idx], segs[1:], value)
		if err != nil {
			return nil, err
		}
		n[idx] = child
		return n, nil
	default:
		if _, ok := listIndex(seg); ok {
			return setIn([]any{}, segs, value)
		}
		return setIn(map[string]any{}, segs, value)
	}
}

// DeletePath removes the key at path. A list slot is tombstoned instead of removed
// so sibling indexes stay stable. It reports whether anything was removed.
func DeletePath(root map[string]any, path string) bool {
	parent, last := ParentPath(path)
	if last == "" {
		return false
	}
	var container any = root
	if parent != "" {
		var ok bool
		if container, ok = GetPath(root, parent); !ok {
			return false
		}
	}
	switch c := container.(type) {
	case map[string]any:
		if _, ok := c[last]; !ok {
			return false
		}
		delete(c, last)
		return true
	case []any:
		idx, ok := listIndex(last)
		if !ok || idx >= len(c) || IsTombstone(c[idx]) {
			return false
		}
		c[idx] = Tombstone
		return true
	}
	return false
}
