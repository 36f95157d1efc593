package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deadlog/deadlog-go/pkg/deadlog"
)

var resetCmd = &cobra.Command{
	Use:   "reset <guild-id> [server-id]",
	Short: "Reset tracked state for a server or a whole guild",
	Long: `Reset clears a server's scan position, counters, and player states, in
memory and in the state database. The next scan reads the log from the
first byte.

With only a guild id, every tracked server of that guild is reset.

Examples:
  deadlog reset guild-1 eu-main
  deadlog reset guild-1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	tracker, _, cleanup, err := openTracker(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 2 {
		key := deadlog.ServerKey{GuildID: args[0], ServerID: args[1]}
		if err := tracker.ResetOne(ctx, key); err != nil {
			if errors.Is(err, deadlog.ErrServerNotFound) {
				return fmt.Errorf("server %s is not tracked", key.String())
			}
			return err
		}
		fmt.Printf("reset %s\n", key.String())
		return nil
	}

	n, err := tracker.ResetAll(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("reset %d servers in guild %s\n", n, args[0])
	return nil
}
