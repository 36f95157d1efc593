package deadlog

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// ServerKey identifies one managed game server within a guild. All tracker
// state is partitioned by this key; nothing is ever shared across keys except
// the read-only rule set.
type ServerKey struct {
	GuildID  string `json:"guild_id"`
	ServerID string `json:"server_id"`
}

func (k ServerKey) String() string {
	return k.GuildID + "/" + k.ServerID
}

// Cursor is the resumable read position within a growing log file.
type Cursor struct {
	// Offset is the byte offset of the first unread byte.
	Offset int64 `json:"offset"`

	// Lines is the number of complete lines consumed so far.
	Lines int64 `json:"lines"`

	// FileSize is the file size observed at the last successful scan. A
	// shrinking size on the next scan means the file was rotated or truncated.
	FileSize int64 `json:"file_size"`
}

// Counters are the per-server tallies exposed to status and report callers.
// PlayerCount and QueueCount are derived from the raw totals; they are never
// maintained independently.
type Counters struct {
	QueueJoins          int64 `json:"queue_joins"`            // jq
	PlayerJoins         int64 `json:"player_joins"`           // j2
	PostJoinDisconnects int64 `json:"post_join_disconnects"`  // d1
	PreJoinDisconnects  int64 `json:"pre_join_disconnects"`   // d2

	PlayerCount int64 `json:"player_count"` // j2 - d1, clamped at zero
	QueueCount  int64 `json:"queue_count"`  // jq - j2 - d2, clamped at zero

	LinesScanned int64 `json:"lines_scanned"`
	LinesSkipped int64 `json:"lines_skipped"`
	Anomalies    int64 `json:"anomalies"`
}

// discardLogger returns a logger that discards all output.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Tracker derives live presence counts for any number of game servers from
// their log files. All state is partitioned by ServerKey; scans for distinct
// keys run concurrently while scans, resets, and inspections for the same key
// are mutually excluded.
type Tracker struct {
	cfg trackerConfig // immutable after creation
	log *slog.Logger

	mu      sync.Mutex
	servers map[ServerKey]*serverState
}

// serverState is the tracker-side state for one ServerKey.
//
// Lock order: scanMu before mu. scanMu serializes whole operations (scan,
// reset) so at most one is in flight per key; mu guards the data fields so
// inspections never observe a partially-applied batch. File I/O and
// classification happen under scanMu only, never under mu.
type serverState struct {
	scanMu sync.Mutex

	mu       sync.RWMutex
	restored bool // persisted snapshot applied (or no store configured)
	cursor   Cursor
	presence *presence

	linesScanned int64
	linesSkipped int64
}

// New creates a Tracker.
//
// Example:
//
//	store, err := store.Open("deadlog.db")
//	...
//	tracker, err := deadlog.New(
//	    deadlog.WithStore(store),
//	    deadlog.WithLogger(logger),
//	)
func New(opts ...Option) (*Tracker, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}

	return &Tracker{
		cfg:     *cfg, // copy to ensure immutability
		log:     log,
		servers: make(map[ServerKey]*serverState),
	}, nil
}

// Close releases the configured state store, if any. The tracker itself holds
// no other resources.
func (t *Tracker) Close() error {
	if t.cfg.store != nil {
		return t.cfg.store.Close()
	}
	return nil
}

// state returns the serverState for key, creating it if needed and restoring
// the persisted snapshot on first touch. Used by the scan path, which brings
// a key into existence.
func (t *Tracker) state(ctx context.Context, key ServerKey) (*serverState, error) {
	t.mu.Lock()
	st, ok := t.servers[key]
	if !ok {
		st = &serverState{presence: newPresence(), restored: t.cfg.store == nil}
		t.servers[key] = st
	}
	t.mu.Unlock()

	if err := t.restore(ctx, key, st); err != nil {
		return nil, err
	}
	return st, nil
}

// lookup returns the serverState for key without creating fresh state: the
// key must be tracked in memory or present in the store, otherwise
// ErrServerNotFound. Used by inspection and reset, which must not conjure
// servers into existence.
func (t *Tracker) lookup(ctx context.Context, key ServerKey) (*serverState, error) {
	t.mu.Lock()
	st, ok := t.servers[key]
	t.mu.Unlock()

	if ok {
		if err := t.restore(ctx, key, st); err != nil {
			return nil, err
		}
		return st, nil
	}

	if t.cfg.store == nil {
		return nil, ErrServerNotFound
	}

	// Not in memory: adopt the persisted record if one exists.
	stored, found, err := t.cfg.store.Load(ctx, key)
	if err != nil {
		return nil, &ScanError{Op: ScanOpRestore, Err: err}
	}
	if !found {
		return nil, ErrServerNotFound
	}

	t.mu.Lock()
	st, ok = t.servers[key]
	if !ok {
		st = &serverState{presence: newPresence(), restored: true}
		st.restoreLocked(stored)
		t.servers[key] = st
	}
	t.mu.Unlock()
	return st, nil
}

// restore applies the persisted snapshot to st exactly once.
func (t *Tracker) restore(ctx context.Context, key ServerKey, st *serverState) error {
	st.mu.RLock()
	done := st.restored
	st.mu.RUnlock()
	if done {
		return nil
	}

	stored, found, err := t.cfg.store.Load(ctx, key)
	if err != nil {
		return &ScanError{Op: ScanOpRestore, Err: err}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.restored {
		return nil
	}
	if found {
		st.restoreLocked(stored)
		t.log.Debug("restored persisted state",
			"key", key.String(),
			"offset", stored.Cursor.Offset,
			"lines", stored.Cursor.Lines)
	}
	st.restored = true
	return nil
}

// restoreLocked loads a persisted snapshot into st. Caller holds st.mu.
// The player-state table starts empty; it is reconstructable by replay.
func (st *serverState) restoreLocked(stored StoredState) {
	st.cursor = stored.Cursor
	st.presence = newPresence()
	st.presence.queueJoins = stored.Counters.QueueJoins
	st.presence.playerJoins = stored.Counters.PlayerJoins
	st.presence.postJoinDisconnects = stored.Counters.PostJoinDisconnects
	st.presence.preJoinDisconnects = stored.Counters.PreJoinDisconnects
	st.presence.anomalies = stored.Counters.Anomalies
	st.linesScanned = stored.Counters.LinesScanned
	st.linesSkipped = stored.Counters.LinesSkipped
}

// countersLocked assembles the exported counter snapshot. Caller holds st.mu.
func (st *serverState) countersLocked() Counters {
	pc, qc := st.presence.counts()
	return Counters{
		QueueJoins:          st.presence.queueJoins,
		PlayerJoins:         st.presence.playerJoins,
		PostJoinDisconnects: st.presence.postJoinDisconnects,
		PreJoinDisconnects:  st.presence.preJoinDisconnects,
		PlayerCount:         pc,
		QueueCount:          qc,
		LinesScanned:        st.linesScanned,
		LinesSkipped:        st.linesSkipped,
		Anomalies:           st.presence.anomalies,
	}
}

// storedStateLocked assembles the durable snapshot. Caller holds st.mu.
func (st *serverState) storedStateLocked() StoredState {
	return StoredState{Cursor: st.cursor, Counters: st.countersLocked()}
}

// resetLocked clears cursor, counters, and the player-state table together.
// Caller holds both scanMu and mu.
func (st *serverState) resetLocked() {
	st.cursor = Cursor{}
	st.presence = newPresence()
	st.linesScanned = 0
	st.linesSkipped = 0
}
