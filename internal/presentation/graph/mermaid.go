package graph

import (
	"fmt"
	"strings"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/lifecycle"
)

// GraphOverlay contains runtime data to highlight on the diagram.
type GraphOverlay struct {
	CurrentPhase domain.Phase
}

// GenerateMermaid produces a Mermaid flowchart of the lifecycle machine.
// It applies semantic styling:
// - Idle: ((Circle))
// - Processing: [[Subroutine]]
// - Waiting on the host: [/Parallelogram/]
// Resync edges are dotted; the completion edge of PROCESSING is unlabeled.
func GenerateMermaid(edges []lifecycle.Edge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	seen := make(map[domain.Phase]bool)
	declare := func(p domain.Phase) {
		if seen[p] {
			return
		}
		seen[p] = true

		opener, closer := "[", "]"
		switch p {
		case domain.PhaseIdle:
			opener, closer = "((", "))"
		case domain.PhaseProcessing:
			opener, closer = "[[", "]]"
		case domain.PhaseAwaitGeneration:
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(string(p)), opener, p, closer)
	}

	for _, e := range edges {
		declare(e.From)
		declare(e.To)
	}

	for _, e := range edges {
		from, to := sanitizeMermaidID(string(e.From)), sanitizeMermaidID(string(e.To))

		if e.Event == "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
			continue
		}

		label := string(e.Event)
		if e.Effect != lifecycle.EffectNone {
			label = fmt.Sprintf("%s / %s", e.Event, e.Effect)
		}
		label = strings.ReplaceAll(label, "\"", "'")

		if e.Effect == lifecycle.EffectResync {
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, label, to)
		} else {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, label, to)
		}
	}

	if overlay != nil && overlay.CurrentPhase != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast regardless of theme.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(string(overlay.CurrentPhase)))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
