// Package rules provides the builtin classification rules for Deadside
// server log lines.
package rules

import (
	"regexp"
	"strings"
	"time"

	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// Rule is a single named pattern. Rules are stateless, side-effect-free, and
// safe for concurrent use.
type Rule struct {
	Name string
	Type event.Type
	re   *regexp.Regexp
}

// Match returns the named captures of the rule against line, or false if the
// line does not match. Capture group names are taken from the pattern's
// (?P<name>...) groups.
func (r *Rule) Match(line string) (map[string]string, bool) {
	m := r.re.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	caps := make(map[string]string)
	for i, name := range r.re.SubexpNames() {
		if name != "" && i < len(m) {
			caps[name] = m[i]
		}
	}
	return caps, true
}

// Set is an ordered, immutable collection of rules evaluated first-match-wins.
type Set struct {
	rules []*Rule
}

// DefaultSet returns the builtin Deadside rule set.
// The returned Set shares the package-level rules; it is never mutated.
func DefaultSet() *Set {
	return &Set{rules: builtin}
}

// Names returns the rule names in evaluation order.
func (s *Set) Names() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}

// Classify matches line against the rule set and returns the event built from
// the first matching rule.
//
// Returns:
//   - (Event, true): the line matched a rule
//   - (Event{}, false): the line is not a recognized event (the common case)
func (s *Set) Classify(line string) (event.Event, bool) {
	// Trim trailing CR for Windows CRLF compatibility
	line = strings.TrimRight(line, "\r")

	// Quick exclusion check
	for _, marker := range exclusionMarkers {
		if strings.Contains(line, marker) {
			return event.Event{}, false
		}
	}

	ts, _ := ParseTimestamp(line)

	for _, r := range s.rules {
		caps, ok := r.Match(line)
		if !ok {
			continue
		}
		return buildEvent(r, ts, caps), true
	}

	return event.Event{}, false
}

// buildEvent maps well-known capture group names onto typed Event fields;
// anything else ends up in Data.
func buildEvent(r *Rule, ts time.Time, caps map[string]string) event.Event {
	ev := event.Event{
		Type:      r.Type,
		Rule:      r.Name,
		Timestamp: ts,
	}

	var extra map[string]string
	for k, v := range caps {
		switch k {
		case "name":
			ev.PlayerName = v
		case "eosid":
			ev.PlayerID = v
		case "mission":
			ev.MissionID = v
		default:
			if extra == nil {
				extra = make(map[string]string)
			}
			extra[k] = v
		}
	}
	ev.Data = extra
	return ev
}

// ParseTimestamp extracts the timestamp from a Deadside log line prefix.
// Returns false if the line has no timestamp prefix; many lines in archived
// corpora are stored without it.
func ParseTimestamp(line string) (time.Time, bool) {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
