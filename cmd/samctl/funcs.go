package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var funcsCmd = &cobra.Command{
	Use:   "funcs",
	Short: "List the functions callable by EVAL",
	Long: `Lists the library functions (from --library) and the native functions.
Functions stored in a chat state take precedence over both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		defer finish(cmd, env)

		ctx := cmd.Context()
		transcript, vars, err := env.Stores(ctx)
		if err != nil {
			return err
		}
		mgr, err := env.Manager(transcript, vars)
		if err != nil {
			return err
		}
		library, natives, err := mgr.Functions(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tPARAMS\tTIMEOUT\tNETWORK")
		for _, f := range library {
			fmt.Fprintf(w, "%s\tlibrary\t%s\t%s\t%t\n", f.Name, strings.Join(f.ParamNames, ","), f.Timeout(), f.NetworkAccess)
		}
		for _, name := range natives {
			fmt.Fprintf(w, "%s\tnative\t-\t-\t-\n", name)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(funcsCmd)
}
