package graph_test

import (
	"strings"
	"testing"

	"github.com/LynxShu/ST-var-manager/internal/presentation/graph"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/lifecycle"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		edges    []lifecycle.Edge
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name:  "Phase Shapes",
			edges: lifecycle.Edges,
			contains: []string{
				"IDLE((\"IDLE\"))",
				"AWAIT_GENERATION[/\"AWAIT_GENERATION\"/]",
				"PROCESSING[[\"PROCESSING\"]]",
			},
		},
		{
			name:  "Labeled Edges",
			edges: lifecycle.Edges,
			contains: []string{
				"IDLE -- \"generation_started / reload\" --> AWAIT_GENERATION",
				"IDLE -- \"message_sent\" --> AWAIT_GENERATION",
				"AWAIT_GENERATION -- \"generation_ended / process\" --> PROCESSING",
				"PROCESSING --> IDLE",
			},
		},
		{
			name:  "Resync Edges Are Dotted",
			edges: lifecycle.Edges,
			contains: []string{
				"IDLE -. \"message_edited / resync\" .-> IDLE",
				"AWAIT_GENERATION -. \"context_changed / resync\" .-> IDLE",
			},
		},
		{
			name: "ID Sanitization",
			edges: []lifecycle.Edge{
				{From: "a-b", Event: "x", To: "c.d"},
			},
			contains: []string{
				"a_b[\"a-b\"]",
				"a_b -- \"x\" --> c_d",
			},
		},
		{
			name:    "Overlay",
			edges:   lifecycle.Edges,
			overlay: &graph.GraphOverlay{CurrentPhase: domain.PhaseProcessing},
			contains: []string{
				"classDef current",
				"class PROCESSING current;",
			},
		},
		{
			name:     "No Overlay",
			edges:    lifecycle.Edges,
			excludes: []string{"classDef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.edges, tt.overlay)
			if !strings.HasPrefix(got, "graph TD\n") {
				t.Errorf("missing header:\n%s", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q\ngot:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("expected output not to contain %q\ngot:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_DeclaresEachPhaseOnce(t *testing.T) {
	got := graph.GenerateMermaid(lifecycle.Edges, nil)
	if n := strings.Count(got, "IDLE((\"IDLE\"))"); n != 1 {
		t.Errorf("IDLE declared %d times", n)
	}
}
