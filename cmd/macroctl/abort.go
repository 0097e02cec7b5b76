package main

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

func newAbortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <os-pid>",
		Short: "abort a macro running under a live 'macroctl spawn' process",
		Long: "abort sends an interrupt to the operating-system process of a " +
			"running 'macroctl spawn' invocation, which then calls Executor.Abort " +
			"for its macro and exits. Pass the OS process ID printed by the shell " +
			"('jobs -l', 'ps'), not the macro Pid printed by spawn.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			osPid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid OS process id %q: %w", args[0], err)
			}
			proc, err := os.FindProcess(osPid)
			if err != nil {
				return fmt.Errorf("finding process %d: %w", osPid, err)
			}
			if err := proc.Signal(syscall.SIGINT); err != nil {
				return fmt.Errorf("signaling process %d: %w", osPid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent interrupt to pid %d\n", osPid)
			return nil
		},
	}
}
