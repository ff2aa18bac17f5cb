package main

import (
	"encoding/json"

	"github.com/LynxShu/ST-var-manager/internal/cli"
	"github.com/LynxShu/ST-var-manager/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the state held by the configured variable store",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer finish(cmd, env)

		ctx := cmd.Context()
		_, vars, err := env.Stores(ctx)
		if err != nil {
			return err
		}
		state, err := vars.State(ctx)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}
		return cli.PrintMarkdown(cmd.OutOrStdout(), tui.StateReport(state, nil), plain(cmd))
	},
}

func init() {
	inspectCmd.Flags().Bool("json", false, "Print the raw state as JSON")
	rootCmd.AddCommand(inspectCmd)
}
