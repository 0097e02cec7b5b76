package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"
)

func newTailCommand() *cobra.Command {
	var pid uint64

	cmd := &cobra.Command{
		Use:   "tail <ws-url>",
		Short: "stream lifecycle events from a running 'macroctl spawn --relay-addr' session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if pid != 0 {
				sep := "?"
				if hasQuery(url) {
					sep = "&"
				}
				url = fmt.Sprintf("%s%spid=%d", url, sep, pid)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn, _, err := websocket.Dial(ctx, url, nil)
			if err != nil {
				return fmt.Errorf("dialing relay at %s: %w", url, err)
			}
			defer conn.Close(websocket.StatusNormalClosure, "tail exiting")

			for {
				_, data, err := conn.Read(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("reading relay frame: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
		},
	}

	cmd.Flags().Uint64Var(&pid, "pid", 0, "only stream events for this macro pid")
	return cmd
}

func hasQuery(url string) bool {
	for _, c := range url {
		if c == '?' {
			return true
		}
	}
	return false
}
