package main

import (
	"fmt"
	"strings"

	sam "github.com/LynxShu/ST-var-manager"
	"github.com/LynxShu/ST-var-manager/internal/cli"
	"github.com/LynxShu/ST-var-manager/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of samctl",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if cli.IsTerminal(out) && !plain(cmd) {
			tui.PrintBanner(out)
		}
		fmt.Fprintf(out, "samctl version %s\n", strings.TrimSpace(sam.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
