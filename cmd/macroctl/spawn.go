package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lodestone-labs/macroexec/internal/history"
	"github.com/lodestone-labs/macroexec/internal/relay"
	"github.com/lodestone-labs/macroexec/internal/workerfactory"
	"github.com/lodestone-labs/macroexec/macro"
)

func newSpawnCommand() *cobra.Command {
	var instanceID string
	var serve bool

	cmd := &cobra.Command{
		Use:   "spawn <entry-module> [args...]",
		Short: "spawn a macro and wait for it to exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := args[0]
			macroArgs := args[1:]

			historyPath, _ := cmd.Flags().GetString("history")
			relayAddr, _ := cmd.Flags().GetString("relay-addr")

			var store *history.Store
			if historyPath != "" {
				var err error
				store, err = history.Open(historyPath)
				if err != nil {
					return fmt.Errorf("opening history database: %w", err)
				}
				defer store.Close()
			}

			exec := macro.New(nil, nil)
			if store != nil {
				exec = exec.WithHistory(store)
			}

			var instanceIDPtr *string
			if instanceID != "" {
				instanceIDPtr = &instanceID
			}

			if relayAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/tail", relay.New(exec.EventBus()))
				srv := &http.Server{Addr: relayAddr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						fmt.Fprintf(cmd.ErrOrStderr(), "macroctl: relay server: %v\n", err)
					}
				}()
				defer srv.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "relay listening on ws://%s/tail\n", relayAddr)
			}

			perms := workerfactory.AllowAll()
			result, err := exec.Spawn(entry, macroArgs, macro.ByUser("cli", "macroctl"), workerfactory.DefaultFactory{}, &perms, instanceIDPtr)
			if err != nil {
				return fmt.Errorf("spawn: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "pid=%s\n", strconv.FormatUint(uint64(result.Pid), 10))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case status := <-result.ExitFuture:
				line, _ := json.Marshal(status)
				fmt.Fprintln(cmd.OutOrStdout(), string(line))
				if status.Kind != macro.ExitSuccess {
					return fmt.Errorf("macro exited non-success: %s", status.String())
				}
			case <-sigCh:
				fmt.Fprintln(cmd.OutOrStdout(), "macroctl: received interrupt, aborting")
				return exec.Abort(result.Pid)
			}

			if serve {
				<-sigCh
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&instanceID, "instance-id", "", "attach this spawn to a game instance UUID")
	cmd.Flags().BoolVar(&serve, "serve", false, "keep the relay server running after the macro exits successfully, until interrupted")

	return cmd
}
