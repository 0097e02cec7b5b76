package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lodestone-labs/macroexec/internal/history"
	"github.com/lodestone-labs/macroexec/internal/lifecycle"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <pid>",
		Short: "look up a macro's recorded exit status from a history database",
		Long: "status reads the durable exit-status mirror written by an Executor " +
			"configured with WithHistory (see spawn's --history flag). The in-memory " +
			"process table only survives for the lifetime of the Executor that " +
			"ran the macro, so cross-process lookups need the --history file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			historyPath, _ := cmd.Flags().GetString("history")
			if historyPath == "" {
				return fmt.Errorf("status requires --history <path>, matching the path spawn was given")
			}

			pid, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}

			store, err := history.Open(historyPath)
			if err != nil {
				return fmt.Errorf("opening history database: %w", err)
			}
			defer store.Close()

			run, err := store.Get(lifecycle.Pid(pid))
			if err != nil {
				return fmt.Errorf("querying pid %d: %w", pid, err)
			}
			if run == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "pid %d: no recorded exit (still running, or history was never persisted for it)\n", pid)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "pid %d: %s\n", pid, run.Status.String())
			return nil
		},
	}
	return cmd
}
