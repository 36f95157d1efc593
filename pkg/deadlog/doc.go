// Package deadlog tracks player presence on Deadside game servers by
// classifying their log files.
//
// This package allows you to:
//   - Classify Deadside log lines into structured events
//   - Track live queue and player counts per server across incremental scans
//   - Survive log rotation without losing counters
//   - Validate counters by replaying a whole log from the start
//   - Define custom event patterns via YAML configuration
//
// # Basic Usage
//
// To track a server's log incrementally:
//
//	tracker, err := deadlog.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracker.Close()
//
//	key := deadlog.ServerKey{GuildID: "guild-1", ServerID: "eu-main"}
//	res, err := tracker.Scan(ctx, key, "/var/deadside/Logs/Deadside.log")
//	if err != nil {
//	    log.Printf("scan error: %v", err)
//	}
//	fmt.Printf("players=%d queue=%d\n", res.PlayerCount, res.QueueCount)
//
// Call Scan again later with the same key to pick up only the lines appended
// since the previous call. If the file was rotated, the scan restarts from
// the beginning of the new file while counters carry over.
//
// To check the computed counters independently of the incremental state:
//
//	rep, err := tracker.Replay(ctx, "/var/deadside/Logs/Deadside.log")
//
// Replay reads the whole file with fresh state and the same classification
// and derivation rules, so its counts are directly comparable to the live
// ones.
//
// # Custom Classifiers
//
// Implement the [Classifier] interface for custom log classification:
//
//	type Classifier interface {
//	    ClassifyLine(ctx context.Context, line string) (ClassifyResult, error)
//	}
//
// Use [ClassifierChain] to combine multiple classifiers:
//
//	chain := &deadlog.ClassifierChain{
//	    Mode:        deadlog.ChainFirst,
//	    Classifiers: []deadlog.Classifier{custom, deadlog.DefaultClassifier{}},
//	}
//
// # YAML Pattern Files
//
// For pattern-based classification without code, use the [pattern]
// subpackage:
//
//	import "github.com/deadlog/deadlog-go/pkg/deadlog/pattern"
//
//	classifier, err := pattern.NewRegexClassifierFromFile("patterns.yaml")
//
// See the [pattern] package for details on YAML format and usage.
//
// # Persistence
//
// By default all state lives in memory. Provide a [StateStore] with
// [WithStore] to persist cursors and counters across restarts.
package deadlog
