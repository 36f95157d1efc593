package deadlog

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/deadlog/deadlog-go/internal/safefile"
)

// ReplayResult is the outcome of a full-file replay: the raw totals and
// derived counts rebuilt from byte zero, independently of any live state.
// Comparable field-for-field with the live Counters; the comparison itself is
// the caller's job.
type ReplayResult struct {
	QueueJoins          int64 `json:"queue_joins"`           // jq
	PlayerJoins         int64 `json:"player_joins"`          // j2
	PostJoinDisconnects int64 `json:"post_join_disconnects"` // d1
	PreJoinDisconnects  int64 `json:"pre_join_disconnects"`  // d2

	PlayerCount int64 `json:"player_count"`
	QueueCount  int64 `json:"queue_count"`

	LinesScanned int64 `json:"lines_scanned"`
	LinesSkipped int64 `json:"lines_skipped"`
	Anomalies    int64 `json:"anomalies"`

	// RuleMatches counts matched lines per rule name. Rules the classifier
	// can enumerate appear even with zero matches.
	RuleMatches map[string]int64 `json:"rule_matches"`
}

// Replay re-derives the counts for a complete log file from byte zero using
// the tracker's classifier and the same derivation as the live path. It keeps
// its own call-scoped player-state table and never touches live state, so it
// is safe to run concurrently with scans and with other replays.
//
// Replaying the same file twice yields identical results.
func (t *Tracker) Replay(ctx context.Context, path string) (ReplayResult, error) {
	f, _, err := safefile.OpenRegular(path)
	if err != nil {
		return ReplayResult{}, &ScanError{Op: ScanOpOpen, Path: path, Err: err}
	}
	defer f.Close()

	p := newPresence()
	result := ReplayResult{RuleMatches: make(map[string]int64)}
	if rn, ok := t.cfg.classifier.(RuleNamer); ok {
		for _, name := range rn.RuleNames() {
			result.RuleMatches[name] = 0
		}
	}

	r := bufio.NewReaderSize(f, scanBufferSize)
	for {
		if result.LinesScanned%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return ReplayResult{}, err
			}
		}

		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return ReplayResult{}, &ScanError{Op: ScanOpRead, Path: path, Err: err}
		}
		// Unlike the incremental scanner, a replay consumes the final
		// unterminated line: the file is complete by definition here.
		atEOF := err == io.EOF
		if atEOF && line == "" {
			break
		}

		result.LinesScanned++
		line = strings.TrimSuffix(line, "\n")

		if len(line) > t.cfg.maxLineBytes {
			result.LinesSkipped++
		} else {
			line = strings.ToValidUTF8(line, "�")
			res, cerr := t.cfg.classifier.ClassifyLine(ctx, line)
			if cerr != nil {
				result.LinesSkipped++
			} else if res.Matched {
				for _, ev := range res.Events {
					if ev.Rule != "" {
						result.RuleMatches[ev.Rule]++
					}
				}
				result.LinesSkipped += applyEvents(p, res.Events)
			}
		}

		if atEOF {
			break
		}
	}

	result.QueueJoins = p.queueJoins
	result.PlayerJoins = p.playerJoins
	result.PostJoinDisconnects = p.postJoinDisconnects
	result.PreJoinDisconnects = p.preJoinDisconnects
	result.PlayerCount, result.QueueCount = p.counts()
	result.Anomalies = p.anomalies
	return result, nil
}
