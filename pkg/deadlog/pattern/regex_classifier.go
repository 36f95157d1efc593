package pattern

import (
	"context"
	"fmt"
	"regexp"

	"github.com/deadlog/deadlog-go/internal/rules"
	"github.com/deadlog/deadlog-go/pkg/deadlog"
	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// RegexClassifier is a Classifier implementation that matches log lines
// against user-defined regular expression patterns from a YAML file.
//
// Patterns are evaluated in file order with first-match-wins semantics,
// mirroring the builtin rule set: the order in the file encodes precedence.
// Named capture groups (?P<name>...) are extracted into the Event.Data field,
// except the reserved names "name", "eosid", and "mission" which populate
// Event.PlayerName, Event.PlayerID, and Event.MissionID.
//
// RegexClassifier is safe for concurrent use by multiple goroutines.
type RegexClassifier struct {
	patterns []*compiledPattern
}

// compiledPattern is a single compiled pattern with its metadata.
type compiledPattern struct {
	id        string
	eventType event.Type
	regex     *regexp.Regexp
	hasGroups bool
}

// NewRegexClassifier creates a RegexClassifier from a PatternFile.
// This function compiles all regular expressions and validates their syntax.
// Returns an error if any pattern has invalid regex syntax.
//
// Example:
//
//	pf, err := pattern.Load("patterns.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	classifier, err := pattern.NewRegexClassifier(pf)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewRegexClassifier(pf *PatternFile) (*RegexClassifier, error) {
	if pf == nil {
		return nil, fmt.Errorf("pattern file is nil")
	}

	patterns := make([]*compiledPattern, 0, len(pf.Patterns))
	for i, p := range pf.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "regex",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
				Cause:   err,
			}
		}

		hasGroups := false
		for _, name := range re.SubexpNames()[1:] {
			if name != "" {
				hasGroups = true
				break
			}
		}

		patterns = append(patterns, &compiledPattern{
			id:        p.ID,
			eventType: event.Type(p.EventType),
			regex:     re,
			hasGroups: hasGroups,
		})
	}

	return &RegexClassifier{patterns: patterns}, nil
}

// NewRegexClassifierFromFile loads a pattern file and creates a
// RegexClassifier in one step.
func NewRegexClassifierFromFile(path string) (*RegexClassifier, error) {
	pf, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewRegexClassifier(pf)
}

// ClassifyLine implements the deadlog.Classifier interface.
// The line is matched against the patterns in file order; the first match
// produces the event.
//
// The context parameter is for future use (e.g., timeout/cancellation).
func (c *RegexClassifier) ClassifyLine(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
	ts, hasTS := rules.ParseTimestamp(line)

	for _, cp := range c.patterns {
		matches := cp.regex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		ev := event.Event{
			Type: cp.eventType,
			Rule: cp.id,
		}
		if hasTS {
			ev.Timestamp = ts
		}

		if cp.hasGroups {
			// SubexpNames keeps a 1:1 correspondence with matches indices,
			// which handles patterns mixing unnamed and named groups.
			allNames := cp.regex.SubexpNames()
			for i := 1; i < len(allNames) && i < len(matches); i++ {
				switch allNames[i] {
				case "":
				case "name":
					ev.PlayerName = matches[i]
				case "eosid":
					ev.PlayerID = matches[i]
				case "mission":
					ev.MissionID = matches[i]
				default:
					if ev.Data == nil {
						ev.Data = make(map[string]string)
					}
					ev.Data[allNames[i]] = matches[i]
				}
			}
		}

		return deadlog.ClassifyResult{
			Events:  []event.Event{ev},
			Matched: true,
		}, nil
	}

	return deadlog.ClassifyResult{Matched: false}, nil
}

// RuleNames implements deadlog.RuleNamer, returning the pattern IDs in
// evaluation order.
func (c *RegexClassifier) RuleNames() []string {
	names := make([]string, len(c.patterns))
	for i, cp := range c.patterns {
		names[i] = cp.id
	}
	return names
}

var _ deadlog.Classifier = (*RegexClassifier)(nil)
var _ deadlog.RuleNamer = (*RegexClassifier)(nil)
