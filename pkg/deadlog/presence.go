package deadlog

import (
	"time"

	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// PlayerState is the tracked connection state of a single player.
// Absence of a record means the player has never been seen; that is not a
// stored state.
type PlayerState string

const (
	StateQueued       PlayerState = "queued"
	StateJoined       PlayerState = "joined"
	StateDisconnected PlayerState = "disconnected"
)

// PlayerRecord is the per-player state, overwritten on every transition.
type PlayerRecord struct {
	State            PlayerState `json:"state"`
	LastTransitionAt time.Time   `json:"last_transition_at"`
}

// presence is the connection-lifecycle state machine for one server: the
// per-player state table plus the raw lifetime totals the live counts are
// derived from. It is the single derivation used by both the incremental
// scanner and the full-file replay, so the two can only disagree about input,
// never about arithmetic.
//
// presence is not goroutine-safe; callers hold the owning server's lock (the
// live path) or keep it call-scoped (replay).
type presence struct {
	queueJoins          int64 // jq
	playerJoins         int64 // j2
	postJoinDisconnects int64 // d1
	preJoinDisconnects  int64 // d2
	anomalies           int64

	players map[string]PlayerRecord
}

func newPresence() *presence {
	return &presence{players: make(map[string]PlayerRecord)}
}

// presenceEvent reports whether an event type drives the state machine.
func presenceEvent(t event.Type) bool {
	switch t {
	case event.QueueJoin, event.PlayerJoin, event.Disconnect:
		return true
	}
	return false
}

// apply consumes one classified connection event in arrival order. No
// transition is ever rejected: state moves monotonically to the event's
// implied state, and duplicates simply re-stamp it. The source of truth is
// line order in the file.
func (p *presence) apply(ev event.Event, at time.Time) {
	switch ev.Type {
	case event.QueueJoin:
		p.players[ev.PlayerID] = PlayerRecord{State: StateQueued, LastTransitionAt: at}
		p.queueJoins++
	case event.PlayerJoin:
		p.players[ev.PlayerID] = PlayerRecord{State: StateJoined, LastTransitionAt: at}
		p.playerJoins++
	case event.Disconnect:
		// Classified by the player's tracked state, not by the textual form
		// of the line: only a player that completed joining counts against
		// the post-join total.
		if p.players[ev.PlayerID].State == StateJoined {
			p.postJoinDisconnects++
		} else {
			p.preJoinDisconnects++
		}
		p.players[ev.PlayerID] = PlayerRecord{State: StateDisconnected, LastTransitionAt: at}
	default:
		return
	}

	// Re-check the derivation after every transition. A negative raw count
	// signals a duplicate or out-of-order disconnect; it is recorded, then
	// clamped at read time rather than hidden.
	if pc, qc := p.rawCounts(); pc < 0 || qc < 0 {
		p.anomalies++
	}
}

// rawCounts derives the live counts from the raw totals without clamping:
//
//	playerCount = j2 - d1
//	queueCount  = jq - j2 - d2
//
// The counts are always recomputed from the totals, never accumulated
// independently, so the invariant holds by construction.
func (p *presence) rawCounts() (playerCount, queueCount int64) {
	return p.playerJoins - p.postJoinDisconnects,
		p.queueJoins - p.playerJoins - p.preJoinDisconnects
}

// counts returns the derived live counts, clamped at zero.
func (p *presence) counts() (playerCount, queueCount int64) {
	playerCount, queueCount = p.rawCounts()
	if playerCount < 0 {
		playerCount = 0
	}
	if queueCount < 0 {
		queueCount = 0
	}
	return playerCount, queueCount
}

// breakdown returns the number of tracked players per state.
func (p *presence) breakdown() map[PlayerState]int {
	out := make(map[PlayerState]int, 3)
	for _, rec := range p.players {
		out[rec.State]++
	}
	return out
}

// applyEvents feeds classified events into p in arrival order, skipping
// presence events that carry no player identity (malformed captures).
// Returns the number of skipped events. Both the live scan path and the
// replay validator go through this single entry point.
func applyEvents(p *presence, events []event.Event) (skipped int64) {
	for _, ev := range events {
		if !presenceEvent(ev.Type) {
			continue
		}
		if ev.PlayerID == "" {
			skipped++
			continue
		}
		at := ev.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		p.apply(ev, at)
	}
	return skipped
}
