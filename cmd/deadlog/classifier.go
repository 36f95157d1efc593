package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deadlog/deadlog-go/internal/plugin"
	"github.com/deadlog/deadlog-go/pkg/deadlog"
	"github.com/deadlog/deadlog-go/pkg/deadlog/pattern"
)

// buildClassifier builds the classifier chain from optional pattern and
// plugin files. Custom rules are chained alongside the builtin set, so
// they add event types without replacing connection tracking.
//
// Returns a nil classifier when neither file is set (the tracker falls
// back to the builtin rules alone). The returned cleanup is always
// non-nil and must be invoked to release plugin resources.
func buildClassifier(ctx context.Context, patternFile, pluginFile string, logger *slog.Logger) (deadlog.Classifier, func(), error) {
	noop := func() {}

	if patternFile == "" && pluginFile == "" {
		return nil, noop, nil
	}

	var classifiers []deadlog.Classifier
	var cleanups []func()

	if patternFile != "" {
		rc, err := pattern.NewRegexClassifierFromFile(patternFile)
		if err != nil {
			// Errors from the pattern package carry no path.
			return nil, noop, fmt.Errorf("pattern file: %w", err)
		}
		classifiers = append(classifiers, rc)
	}

	if pluginFile != "" {
		wc, err := plugin.Load(ctx, pluginFile, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("plugin file: %w", err)
		}
		classifiers = append(classifiers, wc)
		cleanups = append(cleanups, func() { wc.Close() })
	}

	classifiers = append(classifiers, deadlog.DefaultClassifier{})

	cleanup := func() {
		for _, c := range cleanups {
			c()
		}
	}
	return &deadlog.ClassifierChain{
		Mode:        deadlog.ChainAll,
		Classifiers: classifiers,
	}, cleanup, nil
}
