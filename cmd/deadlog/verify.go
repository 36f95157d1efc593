package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <log-file>",
	Short: "Check classification rules against sample log lines",
	Long: `Verify runs every classification rule over the lines of a log file and
reports per-rule match counts with a few sample captures. Rules that
never matched are listed with a zero count, which makes it easy to spot
a rule the game's log format has drifted away from.

Examples:
  deadlog verify testdata/Deadside.log
  deadlog verify --config custom.yaml sample.log`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	tracker, _, cleanup, err := openTracker(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	stats, err := tracker.VerifyPatterns(ctx, lines)
	if err != nil {
		return err
	}

	rules := make([]string, 0, len(stats))
	for name := range stats {
		rules = append(rules, name)
	}
	sort.Strings(rules)

	fmt.Printf("%d lines checked\n", len(lines))
	for _, name := range rules {
		st := stats[name]
		fmt.Printf("%-24s %d\n", name, st.MatchCount)
		for _, captures := range st.SampleCaptures {
			keys := make([]string, 0, len(captures))
			for k := range captures {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Print("    ")
			for i, k := range keys {
				if i > 0 {
					fmt.Print(" ")
				}
				fmt.Printf("%s=%s", k, quoteIfNeeded(captures[k]))
			}
			fmt.Println()
		}
	}
	return nil
}
