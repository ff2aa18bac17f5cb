package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
)

// StateReport formats a state as markdown: static data as JSON, pending
// timed writes as a table, then summary lines and registered functions.
// When diff is non-nil a "Changes" section lists the changed paths first.
func StateReport(state *domain.State, diff *domain.StateDiff) string {
	if state == nil {
		state = domain.NewState()
	}

	var sb strings.Builder
	sb.WriteString("# World State\n\n")

	if diff != nil {
		writeChanges(&sb, diff)
	}

	sb.WriteString("## Static\n\n")
	raw, err := json.MarshalIndent(state.Static, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", state.Static))
	}
	sb.WriteString("```json\n")
	sb.Write(raw)
	sb.WriteString("\n```\n\n")

	sb.WriteString("## Scheduled\n\n")
	if len(state.Volatile) == 0 {
		sb.WriteString("_nothing scheduled_\n\n")
	} else {
		sb.WriteString("| Path | Value | Trigger | Reason |\n|---|---|---|---|\n")
		for _, e := range state.Volatile {
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", e.Path, inline(e.Value), trigger(e), escapeCell(e.Reason))
		}
		sb.WriteString("\n")
	}

	if len(state.ResponseSummary) > 0 {
		sb.WriteString("## Summary\n\n")
		for _, line := range state.ResponseSummary {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
		sb.WriteString("\n")
	}

	if len(state.Func) > 0 {
		sb.WriteString("## Functions\n\n")
		for _, f := range state.Func {
			net := ""
			if f.NetworkAccess {
				net = " (network)"
			}
			fmt.Fprintf(&sb, "- `%s(%s)`%s\n", f.Name, strings.Join(f.ParamNames, ", "), net)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeChanges(sb *strings.Builder, diff *domain.StateDiff) {
	sb.WriteString("## Changes\n\n")

	paths := make([]string, 0, len(diff.Static))
	for p := range diff.Static {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		v := diff.Static[p]
		if v == nil {
			fmt.Fprintf(sb, "- `%s` removed\n", p)
			continue
		}
		fmt.Fprintf(sb, "- `%s` = %s\n", p, inline(v))
	}
	for _, e := range diff.VolatileAdded {
		fmt.Fprintf(sb, "- scheduled `%s` at %s\n", e.Path, trigger(e))
	}
	for _, e := range diff.VolatileRemoved {
		fmt.Fprintf(sb, "- unscheduled `%s`\n", e.Path)
	}
	for _, line := range diff.SummaryAppended {
		fmt.Fprintf(sb, "- summary: %s\n", line)
	}
	if diff.FuncChanged {
		sb.WriteString("- functions changed\n")
	}
	sb.WriteString("\n")
}

func trigger(e domain.TimedEntry) string {
	if e.IsRealTime {
		return e.TriggerAt.Time.Format(domain.ISOLayout)
	}
	return fmt.Sprintf("round %d", e.TriggerAt.Round)
}

func inline(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return escapeCell(fmt.Sprintf("%v", v))
	}
	return "`" + escapeCell(string(raw)) + "`"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
