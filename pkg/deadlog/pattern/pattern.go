// Package pattern provides custom pattern matching for Deadside server logs.
// It allows users to define their own event types via YAML configuration files
// with regular expression patterns.
package pattern

// PatternFile represents the structure of a YAML pattern file.
// Pattern files allow users to define custom log classification rules using
// regular expressions.
//
// Example YAML file:
//
//	version: 1
//	patterns:
//	  - id: trader_zone_enter
//	    event_type: trader_zone_enter
//	    regex: 'LogSFPS: Player EOS:\|(?P<eosid>[0-9a-f]+) entered trader zone (?P<zone>\S+)'
//	  - id: base_raid
//	    event_type: base_raid
//	    regex: 'LogSFPS: Base (?P<base>\S+) raid started'
type PatternFile struct {
	// Version is the pattern file format version. Currently only version 1 is supported.
	Version int `yaml:"version"`

	// Patterns is the list of pattern definitions, in precedence order.
	Patterns []Pattern `yaml:"patterns"`
}

// Pattern represents a single log pattern definition.
// Each pattern consists of a unique identifier, an event type, and a regular
// expression. The regex may contain named capture groups (?P<name>...) which
// will be extracted into the Event.Data field; the reserved group names
// "name", "eosid", and "mission" populate the Event.PlayerName,
// Event.PlayerID, and Event.MissionID fields instead.
type Pattern struct {
	// ID is a unique identifier for this pattern (e.g., "trader_zone_enter").
	// IDs must be unique within a pattern file. Matched events carry the ID
	// in their Rule field.
	ID string `yaml:"id"`

	// EventType is the value to use for the Event.Type field when this pattern matches.
	EventType string `yaml:"event_type"`

	// Regex is the regular expression pattern to match against log lines.
	Regex string `yaml:"regex"`
}
