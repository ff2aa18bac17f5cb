package runtime

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/LynxShu/ST-var-manager/internal/parser"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Coerce turns a raw parameter into a typed value: JSON first, then the
// literals true/false/null/undefined (any case), then plain decimal numbers.
// Anything else stays a string.
func Coerce(raw string) any {
	s := raw
	if parsed, ok := tryJSON(raw); ok {
		str, isString := parsed.(string)
		if !isString {
			return parsed
		}
		s = str
	}

	switch lower := strings.ToLower(strings.TrimSpace(s)); lower {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	case "undefined":
		return domain.Undefined
	default:
		if numberPattern.MatchString(lower) {
			if f, err := strconv.ParseFloat(lower, 64); err == nil {
				return f
			}
		}
	}
	return s
}

// tryJSON decodes raw, reporting whether it was valid JSON.
func tryJSON(raw string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

// decodeJSON returns the JSON value of raw, or raw itself when it is not JSON.
func decodeJSON(raw string) any {
	if v, ok := tryJSON(raw); ok {
		return v
	}
	return raw
}

// params returns the command parameters: typed values for preparsed commands,
// trimmed strings otherwise.
func params(cmd domain.Command) []any {
	if cmd.Preparsed {
		return cmd.Params
	}
	parts := parser.SplitParams(cmd.Raw)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

// asString renders a parameter as text.
func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// asInt parses an integer parameter.
func asInt(v any) (int, bool) {
	if n, ok := domain.Numeric(v); ok {
		return int(n), n == float64(int(n))
	}
	n, err := strconv.Atoi(strings.TrimSpace(asString(v)))
	return n, err == nil
}

// param returns p[i] or nil.
func param(p []any, i int) any {
	if i < len(p) {
		return p[i]
	}
	return nil
}

// tail returns p[i:] joined back with "::", for raw commands whose last
// parameter may itself contain the separator.
func tail(p []any, i int) string {
	parts := make([]string, 0, len(p))
	for _, v := range p[min(i, len(p)):] {
		parts = append(parts, asString(v))
	}
	return strings.Join(parts, "::")
}
