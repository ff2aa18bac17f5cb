package parser

import "strings"

// SplitParams splits a raw parameter string on "::" and trims each segment.
// A backslash-escaped `\::` is kept as a literal "::" inside its segment.
func SplitParams(raw string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && strings.HasPrefix(raw[i+1:], "::") {
			cur.WriteString("::")
			i += 2
			continue
		}
		if strings.HasPrefix(raw[i:], "::") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			i++
			continue
		}
		cur.WriteByte(raw[i])
	}
	return append(out, strings.TrimSpace(cur.String()))
}
