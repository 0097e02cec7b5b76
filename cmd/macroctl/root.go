// Package main implements macroctl, a small operator CLI for spawning,
// aborting, and tailing macros during development, independent of any
// host's own HTTP API. Grounded on
// bartekus-stagecraft/internal/cli/root.go's Cobra root-command shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "macroctl",
		Short:         "macroctl – spawn, abort, and tail macro executions",
		Long:          "macroctl is a development-time CLI around the macro package's Executor facade.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("history", "", "path to a SQLite history database (default: in-memory only)")
	cmd.PersistentFlags().String("relay-addr", "", "address to serve the debug event relay on, e.g. :8787 (default: disabled)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the macroctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "macroctl (dev build)")
		},
	})

	cmd.AddCommand(newAbortCommand())
	cmd.AddCommand(newSpawnCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newTailCommand())

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "macroctl:", err)
		os.Exit(1)
	}
}
