package deadlog

import (
	"context"

	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// Snapshot is a read-only view of one server's internal state for
// diagnostics.
type Snapshot struct {
	Key      ServerKey           `json:"key"`
	Counters Counters            `json:"counters"`
	Cursor   Cursor              `json:"cursor"`
	Players  map[PlayerState]int `json:"players"`
}

// Counters returns the live counters for key.
// Returns ErrServerNotFound for a key that was never scanned.
func (t *Tracker) Counters(ctx context.Context, key ServerKey) (Counters, error) {
	st, err := t.lookup(ctx, key)
	if err != nil {
		return Counters{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.countersLocked(), nil
}

// PlayerStateBreakdown returns the number of tracked players per state for
// key.
func (t *Tracker) PlayerStateBreakdown(ctx context.Context, key ServerKey) (map[PlayerState]int, error) {
	st, err := t.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.presence.breakdown(), nil
}

// Inspect returns a consistent snapshot of counters, cursor, and the
// player-state breakdown. The snapshot is taken under the key's read lock, so
// it can never observe a partially-committed scan.
func (t *Tracker) Inspect(ctx context.Context, key ServerKey) (Snapshot, error) {
	st, err := t.lookup(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return Snapshot{
		Key:      key,
		Counters: st.countersLocked(),
		Cursor:   st.cursor,
		Players:  st.presence.breakdown(),
	}, nil
}

// ResetOne clears the cursor, counters, and player-state table for key, in
// lockstep, and removes any persisted record. It waits for an in-flight scan
// of the same key to finish first.
// Returns ErrServerNotFound for an unknown key; no partial mutation occurs.
func (t *Tracker) ResetOne(ctx context.Context, key ServerKey) error {
	st, err := t.lookup(ctx, key)
	if err != nil {
		return err
	}

	st.scanMu.Lock()
	defer st.scanMu.Unlock()

	st.mu.Lock()
	st.resetLocked()
	st.mu.Unlock()

	if t.cfg.store != nil {
		if _, err := t.cfg.store.Delete(ctx, key); err != nil {
			return &ScanError{Op: ScanOpPersist, Err: err}
		}
	}
	t.log.Debug("reset server state", "key", key.String())
	return nil
}

// ResetAll resets every tracked server under the guild and removes their
// persisted records. Returns the number of servers reset.
func (t *Tracker) ResetAll(ctx context.Context, guildID string) (int, error) {
	t.mu.Lock()
	var keys []ServerKey
	var states []*serverState
	for key, st := range t.servers {
		if key.GuildID == guildID {
			keys = append(keys, key)
			states = append(states, st)
		}
	}
	t.mu.Unlock()

	for i, st := range states {
		st.scanMu.Lock()
		st.mu.Lock()
		st.resetLocked()
		st.mu.Unlock()
		st.scanMu.Unlock()
		t.log.Debug("reset server state", "key", keys[i].String())
	}

	count := len(states)
	if t.cfg.store != nil {
		deleted, err := t.cfg.store.DeleteGuild(ctx, guildID)
		if err != nil {
			return count, &ScanError{Op: ScanOpPersist, Err: err}
		}
		// The store may know servers this process has not touched yet.
		if deleted > count {
			count = deleted
		}
	}
	return count, nil
}

// maxSampleCaptures bounds the sample captures retained per rule by
// VerifyPatterns.
const maxSampleCaptures = 3

// RuleStats reports how a single rule fared against a sample corpus.
type RuleStats struct {
	MatchCount     int64               `json:"match_count"`
	SampleCaptures []map[string]string `json:"sample_captures,omitempty"`
}

// VerifyPatterns runs a corpus of sample lines through the classifier and
// reports per-rule match counts with a few sample captures each. It is a
// diagnostic surface, not the hot path, and touches no per-server state.
// Rules the classifier can enumerate are reported even with zero matches.
func (t *Tracker) VerifyPatterns(ctx context.Context, lines []string) (map[string]RuleStats, error) {
	stats := make(map[string]RuleStats)
	if rn, ok := t.cfg.classifier.(RuleNamer); ok {
		for _, name := range rn.RuleNames() {
			stats[name] = RuleStats{}
		}
	}

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := t.cfg.classifier.ClassifyLine(ctx, line)
		if err != nil || !res.Matched {
			continue
		}
		for _, ev := range res.Events {
			if ev.Rule == "" {
				continue
			}
			s := stats[ev.Rule]
			s.MatchCount++
			if len(s.SampleCaptures) < maxSampleCaptures {
				if caps := sampleCaptures(ev); len(caps) > 0 {
					s.SampleCaptures = append(s.SampleCaptures, caps)
				}
			}
			stats[ev.Rule] = s
		}
	}
	return stats, nil
}

// sampleCaptures flattens an event's captured fields into one map.
func sampleCaptures(ev event.Event) map[string]string {
	caps := make(map[string]string, len(ev.Data)+3)
	for k, v := range ev.Data {
		caps[k] = v
	}
	if ev.PlayerName != "" {
		caps["name"] = ev.PlayerName
	}
	if ev.PlayerID != "" {
		caps["eosid"] = ev.PlayerID
	}
	if ev.MissionID != "" {
		caps["mission"] = ev.MissionID
	}
	return caps
}
