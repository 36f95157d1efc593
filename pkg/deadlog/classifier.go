package deadlog

import (
	"context"
	"errors"

	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// ClassifyResult represents the result of classifying a log line.
type ClassifyResult struct {
	// Events contains the classified events.
	Events []event.Event

	// Matched indicates whether the classifier recognized the input.
	Matched bool
}

// Classifier is the interface for log line classifiers.
// Implementations include DefaultClassifier (builtin Deadside rules),
// pattern.RegexClassifier (YAML-defined rules), and wasm plugins.
type Classifier interface {
	// ClassifyLine classifies a single log line.
	// Returns ClassifyResult with Matched=true if the line was recognized.
	// Returns error only for unexpected failures (not for unrecognized lines).
	ClassifyLine(ctx context.Context, line string) (ClassifyResult, error)
}

// ClassifierFunc is an adapter to allow ordinary functions to be used as
// Classifiers.
type ClassifierFunc func(ctx context.Context, line string) (ClassifyResult, error)

// ClassifyLine implements the Classifier interface.
func (f ClassifierFunc) ClassifyLine(ctx context.Context, line string) (ClassifyResult, error) {
	return f(ctx, line)
}

// RuleNamer is implemented by classifiers that can enumerate their rule
// names. VerifyPatterns uses it to report zero-match rules.
type RuleNamer interface {
	RuleNames() []string
}

// ChainMode specifies how ClassifierChain executes classifiers.
type ChainMode int

const (
	// ChainAll executes all classifiers and combines results (default).
	ChainAll ChainMode = iota

	// ChainFirst stops at the first classifier that matches.
	ChainFirst

	// ChainContinueOnError skips classifiers that return errors and continues.
	// Errors are collected and returned together at the end.
	ChainContinueOnError
)

// ClassifierChain combines multiple classifiers.
type ClassifierChain struct {
	Mode        ChainMode
	Classifiers []Classifier
}

// ClassifyLine implements the Classifier interface.
//
// If the context is cancelled during execution, ClassifyLine returns
// immediately with partial results (events collected before cancellation) and
// the context error.
func (c *ClassifierChain) ClassifyLine(ctx context.Context, line string) (ClassifyResult, error) {
	var allEvents []event.Event
	var errs []error
	anyMatched := false

	for _, cl := range c.Classifiers {
		if err := ctx.Err(); err != nil {
			return ClassifyResult{Events: allEvents, Matched: anyMatched}, err
		}
		if cl == nil {
			continue
		}

		result, err := cl.ClassifyLine(ctx, line)
		if err != nil {
			if c.Mode == ChainContinueOnError {
				errs = append(errs, err)
				continue
			}
			return ClassifyResult{}, err
		}
		if result.Matched {
			anyMatched = true
			allEvents = append(allEvents, result.Events...)
			if c.Mode == ChainFirst {
				return ClassifyResult{Events: allEvents, Matched: true}, nil
			}
		}
	}

	if len(errs) > 0 {
		return ClassifyResult{Events: allEvents, Matched: anyMatched}, errors.Join(errs...)
	}

	return ClassifyResult{Events: allEvents, Matched: anyMatched}, nil
}

// RuleNames implements RuleNamer by collecting the names of every chained
// classifier that exposes them.
func (c *ClassifierChain) RuleNames() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, cl := range c.Classifiers {
		rn, ok := cl.(RuleNamer)
		if !ok {
			continue
		}
		for _, name := range rn.RuleNames() {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
