// Package event defines the core Event type for Deadside log classification.
//
// This package is separated from the main deadlog package to avoid import
// cycles between pkg/deadlog and internal/rules.
package event

import (
	"sort"
	"strings"
	"time"
)

// Type represents the type of Deadside log event.
type Type string

const (
	// QueueJoin indicates a player entered the server's connection queue.
	QueueJoin Type = "queue_join"

	// PlayerJoin indicates a player completed connecting and is now active.
	PlayerJoin Type = "player_join"

	// Disconnect indicates a player left the server. Whether it counts as a
	// pre-join or post-join disconnect depends on the player's tracked state,
	// not on which textual form the log line took.
	Disconnect Type = "disconnect"

	// MissionReady indicates a mission switched to the READY state.
	MissionReady Type = "mission_ready"

	// MissionInitial indicates a mission switched back to the INITIAL state.
	MissionInitial Type = "mission_initial"

	// AirdropFlying indicates an airdrop plane is in the air.
	AirdropFlying Type = "airdrop_flying"

	// VehicleAdd indicates the game mode spawned a vehicle.
	VehicleAdd Type = "vehicle_add"

	// MaxPlayerCount carries the server's configured player cap.
	MaxPlayerCount Type = "max_player_count"
)

// allTypes is the canonical list of all event types.
// Add new event types here when extending the rule set.
var allTypes = []Type{
	QueueJoin, PlayerJoin, Disconnect,
	MissionReady, MissionInitial, AirdropFlying,
	VehicleAdd, MaxPlayerCount,
}

// TypeNames returns a sorted list of all valid event type names.
// This is the single source of truth for event type enumeration.
func TypeNames() []string {
	names := make([]string, len(allTypes))
	for i, t := range allTypes {
		names[i] = string(t)
	}
	sort.Strings(names)
	return names
}

// typeByName maps lowercase string names to Type for efficient lookup.
// Built once from allTypes at package initialization.
var typeByName = func() map[string]Type {
	m := make(map[string]Type, len(allTypes))
	for _, t := range allTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseType converts a string to Type if valid.
// It is case-insensitive and trims leading/trailing whitespace.
// Returns the type and true if found, zero value and false otherwise.
func ParseType(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	t, ok := typeByName[name]
	return t, ok
}

// Event represents a classified Deadside log event.
type Event struct {
	// Type is the event type.
	Type Type `json:"type"`

	// Rule is the name of the rule that matched the line. Rule names are
	// stable identifiers used for per-rule match statistics.
	Rule string `json:"rule,omitempty"`

	// Timestamp is when the event occurred (from the log line prefix,
	// zero if the line carried no timestamp).
	Timestamp time.Time `json:"timestamp,omitempty"`

	// PlayerName is the display name of the player (for connection events,
	// if the line carried one).
	PlayerName string `json:"player_name,omitempty"`

	// PlayerID is the EOS identity of the player (hex string after "EOS:|").
	PlayerID string `json:"player_id,omitempty"`

	// MissionID is the mission identifier (for mission events).
	MissionID string `json:"mission_id,omitempty"`

	// Data holds additional captured fields keyed by capture group name.
	Data map[string]string `json:"data,omitempty"`

	// RawLine is the original log line (only included if requested).
	RawLine string `json:"raw_line,omitempty"`
}
