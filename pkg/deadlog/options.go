package deadlog

import (
	"fmt"
	"log/slog"
)

// DefaultMaxLineBytes is the default limit for a single log line. Longer
// lines are counted as skipped rather than classified; this bounds memory
// when a log is corrupted or binary data leaks into it.
const DefaultMaxLineBytes = 512 * 1024

// Option configures a Tracker using the functional options pattern.
type Option func(*trackerConfig)

// trackerConfig holds internal configuration for the tracker.
type trackerConfig struct {
	classifier   Classifier
	logger       *slog.Logger
	store        StateStore
	maxLineBytes int
}

// defaultTrackerConfig returns a trackerConfig with sensible defaults.
func defaultTrackerConfig() *trackerConfig {
	return &trackerConfig{
		classifier:   DefaultClassifier{},
		maxLineBytes: DefaultMaxLineBytes,
	}
}

// applyOptions applies functional options to a trackerConfig.
func applyOptions(opts []Option) *trackerConfig {
	cfg := defaultTrackerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option combinations.
func (c *trackerConfig) validate() error {
	if c.maxLineBytes <= 0 {
		return fmt.Errorf("max line bytes must be positive, got %d", c.maxLineBytes)
	}
	if c.classifier == nil {
		return fmt.Errorf("classifier must not be nil")
	}
	return nil
}

// WithClassifier sets a custom classifier for log lines.
// If c is nil, this option has no effect (the default classifier remains
// active).
func WithClassifier(c Classifier) Option {
	return func(cfg *trackerConfig) {
		if c != nil {
			cfg.classifier = c
		}
	}
}

// WithClassifiers combines multiple classifiers using ChainFirst mode: the
// first classifier that recognizes a line wins, preserving declaration-order
// precedence.
func WithClassifiers(classifiers ...Classifier) Option {
	return func(cfg *trackerConfig) {
		if len(classifiers) > 0 {
			cfg.classifier = &ClassifierChain{
				Mode:        ChainFirst,
				Classifiers: classifiers,
			}
		}
	}
}

// WithLogger sets a custom logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *trackerConfig) {
		cfg.logger = logger
	}
}

// WithStore enables durable cursor/counter persistence. State is restored on
// first touch of a ServerKey and saved after every committed scan.
func WithStore(store StateStore) Option {
	return func(cfg *trackerConfig) {
		cfg.store = store
	}
}

// WithMaxLineBytes overrides the per-line size limit.
func WithMaxLineBytes(n int) Option {
	return func(cfg *trackerConfig) {
		cfg.maxLineBytes = n
	}
}
