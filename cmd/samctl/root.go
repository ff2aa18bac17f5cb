package main

import (
	"fmt"
	"os"

	"github.com/LynxShu/ST-var-manager/internal/cli"
	"github.com/LynxShu/ST-var-manager/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "samctl",
	Short: "samctl applies and inspects text-embedded world state",
	Long: `samctl runs the state command language outside of a chat host: apply the
commands of a single message, replay a recorded session, inspect a stored state
or list the functions available to EVAL.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "Variable store: memory, file, redis or sqlite")
	rootCmd.PersistentFlags().String("store-path", "", "File or database path of the store")
	rootCmd.PersistentFlags().String("chat", "", "Chat the stored state belongs to")
	rootCmd.PersistentFlags().String("library", "", "Directory of function documents")
	rootCmd.PersistentFlags().Bool("legacy-markers", false, "Use the legacy HTML comment state markers")
	rootCmd.PersistentFlags().Bool("metrics", false, "Dump Prometheus metrics to stderr on exit")
	rootCmd.PersistentFlags().Bool("plain", false, "Never render markdown output")
}

// loadEnv reads the configuration, applies flag overrides and builds the Env.
func loadEnv(cmd *cobra.Command) (*cli.Env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("store"); v != "" {
		cfg.Store.Kind = v
	}
	if v, _ := flags.GetString("store-path"); v != "" {
		cfg.Store.Path = v
	}
	if v, _ := flags.GetString("chat"); v != "" {
		cfg.Store.Chat = v
	}
	if v, _ := flags.GetString("library"); v != "" {
		cfg.Library = v
	}
	if flags.Changed("legacy-markers") {
		cfg.Markers.Legacy, _ = flags.GetBool("legacy-markers")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cli.NewEnv(cfg)
}

// finish dumps metrics when requested and releases the Env.
func finish(cmd *cobra.Command, env *cli.Env) {
	if dump, _ := cmd.Flags().GetBool("metrics"); dump {
		if err := env.Metrics.WriteText(cmd.ErrOrStderr()); err != nil {
			env.Logger.Error("failed to write metrics", "err", err)
		}
	}
	if err := env.Close(); err != nil {
		env.Logger.Error("failed to release resources", "err", err)
	}
}

func plain(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("plain")
	return v
}
