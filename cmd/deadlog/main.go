// Command deadlog tracks player presence on Deadside game servers by
// scanning their log files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/deadlog/deadlog-go/internal/config"
	"github.com/deadlog/deadlog-go/internal/store"
	"github.com/deadlog/deadlog-go/pkg/deadlog"
)

var (
	// global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "deadlog",
	Short: "Deadside server log presence tracker",
	Long: `deadlog scans Deadside dedicated-server log files and tracks player
presence per server: who is waiting in the connection queue, who is in
the game, and how many joins and disconnects the log has recorded.

Servers are configured in a YAML file (see --config). Scan positions and
counters persist across runs in a SQLite database, so repeated scans only
read new log lines.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "deadlog.yaml",
		"Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose logging")
}

// newLogger builds the CLI logger. Warnings only unless --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openTracker loads the configuration and assembles a tracker with its
// store and classifier chain. The returned cleanup must be called to
// release resources and is non-nil even on error.
func openTracker(ctx context.Context, logger *slog.Logger) (*deadlog.Tracker, *config.Config, func(), error) {
	noop := func() {}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, noop, err
	}

	classifier, classifierCleanup, err := buildClassifier(ctx, cfg.Scan.PatternFile, cfg.Scan.PluginFile, logger)
	if err != nil {
		return nil, nil, noop, err
	}

	opts := []deadlog.Option{deadlog.WithLogger(logger)}
	if classifier != nil {
		opts = append(opts, deadlog.WithClassifier(classifier))
	}
	if cfg.Database.Path != "" {
		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			classifierCleanup()
			return nil, nil, noop, fmt.Errorf("failed to open state database: %w", err)
		}
		opts = append(opts, deadlog.WithStore(st))
	}

	tracker, err := deadlog.New(opts...)
	if err != nil {
		classifierCleanup()
		return nil, nil, noop, err
	}

	cleanup := func() {
		tracker.Close()
		classifierCleanup()
	}
	return tracker, cfg, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
