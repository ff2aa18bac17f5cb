package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/LynxShu/ST-var-manager/internal/cli"
	"github.com/LynxShu/ST-var-manager/internal/presentation/tui"
	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Apply the commands of one message",
	Long: `Reads a message from the file (or stdin), applies its commands and prints the
message with a fresh state block. The starting state is read from --state, then
from the block already embedded in the message, else the Initial State.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer finish(cmd, env)

		ctx := cli.WithInterrupt(cmd.Context())
		defer ctx.Stop()

		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		var base *domain.State
		if path, _ := cmd.Flags().GetString("state"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}
			base = domain.NewState()
			if err := json.Unmarshal(data, base); err != nil {
				return fmt.Errorf("parse state %s: %w", path, err)
			}
		}

		transcript, vars, err := env.Stores(ctx)
		if err != nil {
			return err
		}
		mgr, err := env.Manager(transcript, vars)
		if err != nil {
			return err
		}

		res, err := mgr.Apply(ctx, text, base)
		if err != nil {
			return err
		}
		for _, e := range res.Errors {
			env.Logger.Warn("command failed", "batch_id", res.BatchID, "err", e)
		}

		out := cmd.OutOrStdout()
		if report, _ := cmd.Flags().GetBool("report"); report {
			return cli.PrintMarkdown(out, tui.StateReport(res.State, res.Diff), plain(cmd))
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res.State)
		}
		_, err = fmt.Fprintln(out, res.Text)
		return err
	},
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read message: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func init() {
	applyCmd.Flags().String("state", "", "JSON file holding the starting state")
	applyCmd.Flags().Bool("report", false, "Print a state report with the changes instead of the message")
	applyCmd.Flags().Bool("json", false, "Print the resulting state as JSON")
	rootCmd.AddCommand(applyCmd)
}
