package main

import (
	"fmt"
	"strings"

	"github.com/LynxShu/ST-var-manager/internal/presentation/graph"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/LynxShu/ST-var-manager/pkg/lifecycle"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the lifecycle state machine as a Mermaid diagram",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.GraphOverlay
		if current, _ := cmd.Flags().GetString("current"); current != "" {
			overlay = &graph.GraphOverlay{CurrentPhase: domain.Phase(strings.ToUpper(current))}
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(lifecycle.Edges, overlay))
		return err
	},
}

func init() {
	graphCmd.Flags().String("current", "", "Highlight a phase (IDLE, AWAIT_GENERATION, PROCESSING)")
	rootCmd.AddCommand(graphCmd)
}
