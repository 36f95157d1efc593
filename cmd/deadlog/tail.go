package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"github.com/deadlog/deadlog-go/internal/logfinder"
	"github.com/deadlog/deadlog-go/pkg/deadlog"
	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

var (
	tailFormat     string
	tailTypes      []string
	tailFromStart  bool
	tailCountEvery time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail <guild-id> <server-id>",
	Short: "Follow a server log and output events as they happen",
	Long: `Tail follows a server's log file and prints classified events as the
server writes them. The file is reopened automatically when the server
rotates its logs.

Counters are updated through the regular scan path on an interval, so a
tailing session keeps the persisted state current too.

Examples:
  # Follow one server, human-readable
  deadlog tail guild-1 eu-main --format pretty

  # Only connection lifecycle events
  deadlog tail guild-1 eu-main --types queue_join,player_join,disconnect

  # Pipe to jq
  deadlog tail guild-1 eu-main | jq 'select(.type == "player_join")'`,
	Args: cobra.ExactArgs(2),
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&tailFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	tailCmd.Flags().StringSliceVarP(&tailTypes, "types", "t", nil,
		"Event types to show (comma-separated)")
	tailCmd.Flags().BoolVar(&tailFromStart, "from-start", false,
		"Emit events from the start of the file instead of only new lines")
	tailCmd.Flags().DurationVar(&tailCountEvery, "count-interval", 30*time.Second,
		"How often to run a counter scan (0 disables)")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	if !ValidFormats[tailFormat] {
		return fmt.Errorf("unknown format: %s", tailFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	tracker, cfg, cleanup, err := openTracker(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	guildID, serverID := args[0], args[1]
	srv := cfg.FindServer(guildID, serverID)
	if srv == nil {
		return fmt.Errorf("server %s/%s not in configuration", guildID, serverID)
	}
	path, err := logfinder.ResolvePath(srv.LogPath)
	if err != nil {
		return err
	}
	key := deadlog.ServerKey{GuildID: guildID, ServerID: serverID}

	classifier, classifierCleanup, err := buildClassifier(ctx, cfg.Scan.PatternFile, cfg.Scan.PluginFile, logger)
	if err != nil {
		return err
	}
	defer classifierCleanup()
	if classifier == nil {
		classifier = deadlog.DefaultClassifier{}
	}

	typeFilter := make(map[event.Type]bool)
	for _, name := range tailTypes {
		t, ok := event.ParseType(name)
		if !ok {
			return fmt.Errorf("unknown event type: %s", name)
		}
		typeFilter[t] = true
	}

	tailCfg := tail.Config{
		Follow: true,
		ReOpen: true,
		Logger: tail.DiscardingLogger,
	}
	if !tailFromStart {
		tailCfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	tf, err := tail.TailFile(path, tailCfg)
	if err != nil {
		return fmt.Errorf("failed to tail %s: %w", path, err)
	}
	defer tf.Cleanup()
	defer tf.Stop()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if tailCountEvery > 0 {
		ticker = time.NewTicker(tailCountEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case line, ok := <-tf.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				if verbose {
					fmt.Fprintf(os.Stderr, "warning: %v\n", line.Err)
				}
				continue
			}
			result, err := classifier.ClassifyLine(ctx, line.Text)
			if err != nil {
				if verbose {
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				}
				continue
			}
			for _, ev := range result.Events {
				if len(typeFilter) > 0 && !typeFilter[ev.Type] {
					continue
				}
				if err := OutputEvent(tailFormat, ev, os.Stdout); err != nil {
					return fmt.Errorf("output error: %w", err)
				}
			}

		case <-tick:
			res, err := tracker.Scan(ctx, key, path)
			if err != nil {
				if verbose {
					fmt.Fprintf(os.Stderr, "warning: counter scan: %v\n", err)
				}
				continue
			}
			if tailFormat == "pretty" {
				fmt.Printf("-- players=%d queue=%d (lines=%d)\n",
					res.PlayerCount, res.QueueCount, res.Cursor.Lines)
			}

		case <-ctx.Done():
			return nil
		}
	}
}
