package deadlog

import (
	"context"

	"github.com/deadlog/deadlog-go/internal/rules"
	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// defaultRules is the builtin rule set, compiled once at startup and shared
// read-only by every classifier and every server scanner.
var defaultRules = rules.DefaultSet()

// DefaultClassifier classifies lines against the builtin Deadside rule set:
// connection lifecycle events (queue_join, player_join, the two disconnect
// forms) plus the game-world events (missions, airdrops, vehicles).
type DefaultClassifier struct{}

// ClassifyLine implements the Classifier interface.
// The context parameter is for future use (e.g., timeout/cancellation).
func (DefaultClassifier) ClassifyLine(ctx context.Context, line string) (ClassifyResult, error) {
	ev, ok := defaultRules.Classify(line)
	if !ok {
		return ClassifyResult{Matched: false}, nil
	}
	return ClassifyResult{Events: []event.Event{ev}, Matched: true}, nil
}

// RuleNames implements RuleNamer.
func (DefaultClassifier) RuleNames() []string {
	return defaultRules.Names()
}

// Ensure DefaultClassifier implements Classifier.
var _ Classifier = DefaultClassifier{}
var _ RuleNamer = DefaultClassifier{}
