package main

import (
	"github.com/LynxShu/ST-var-manager/internal/cli"
	"github.com/LynxShu/ST-var-manager/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Replay a recorded chat session through the lifecycle",
	Long: `Seeds the transcript with the script messages, then raises each recorded
host event and chat edit in order. The final stored state is printed as a report.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer finish(cmd, env)

		ctx := cli.WithInterrupt(cmd.Context())
		defer ctx.Stop()

		script, err := cli.LoadScript(args[0])
		if err != nil {
			return err
		}

		transcript, vars, err := env.Stores(ctx)
		if err != nil {
			return err
		}
		mgr, err := env.Manager(transcript, vars)
		if err != nil {
			return err
		}

		if err := cli.Replay(ctx, mgr, transcript, script); err != nil {
			if sig := ctx.Signal(); sig != nil {
				env.Logger.Info("replay interrupted", "signal", sig.String())
			}
			return err
		}

		state, err := vars.State(ctx)
		if err != nil {
			return err
		}
		env.Logger.Info("replay finished", "steps", len(script.Steps), "phase", mgr.Phase())
		return cli.PrintMarkdown(cmd.OutOrStdout(), tui.StateReport(state, nil), plain(cmd))
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
