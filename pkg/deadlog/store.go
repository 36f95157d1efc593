package deadlog

import "context"

// StoredState is the durable record for one ServerKey: the scan cursor and
// the counters, persisted in lockstep so a reset or restore can never pair a
// stale cursor with fresh counters. The player-state table is deliberately
// not persisted; the derived counts depend only on the lifetime totals, and
// the table can be rebuilt by a full replay if ever needed.
type StoredState struct {
	Cursor   Cursor   `json:"cursor"`
	Counters Counters `json:"counters"`
}

// StateStore persists per-server tracker state across process restarts.
// Implementations must be safe for concurrent use; the tracker serializes
// calls per ServerKey but distinct servers save concurrently.
type StateStore interface {
	// Load returns the stored state for key, with found=false if none exists.
	Load(ctx context.Context, key ServerKey) (state StoredState, found bool, err error)

	// Save writes the full state snapshot for key, replacing any previous one.
	Save(ctx context.Context, key ServerKey, state StoredState) error

	// Delete removes the record for key. Returns false if none existed.
	Delete(ctx context.Context, key ServerKey) (bool, error)

	// DeleteGuild removes every record under the guild and returns how many
	// were deleted.
	DeleteGuild(ctx context.Context, guildID string) (int, error)

	// Close releases the underlying resources.
	Close() error
}
