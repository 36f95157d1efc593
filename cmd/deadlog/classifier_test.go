package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildClassifier_NoFiles(t *testing.T) {
	c, cleanup, err := buildClassifier(context.Background(), "", "", nil)
	defer cleanup()
	if err != nil {
		t.Fatalf("buildClassifier() error = %v", err)
	}
	if c != nil {
		t.Errorf("buildClassifier() = %v, want nil", c)
	}
}

func TestBuildClassifier_ValidPatternFile(t *testing.T) {
	dir := t.TempDir()
	patternFile := filepath.Join(dir, "patterns.yaml")
	content := `version: 1
patterns:
  - id: trader_zone_enter
    event_type: trader_zone_enter
    regex: 'entered trader zone (?P<zone>\w+)'
`
	if err := os.WriteFile(patternFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, cleanup, err := buildClassifier(context.Background(), patternFile, "", nil)
	defer cleanup()
	if err != nil {
		t.Fatalf("buildClassifier() error = %v", err)
	}
	if c == nil {
		t.Fatal("buildClassifier() = nil, want non-nil")
	}

	// The chain still includes the builtin rules.
	line := "[2025.05.17-02.01.30:829][  0]LogBeacon: Beacon Join SFPSOnlineBeaconClient EOS:|0123abcd"
	result, err := c.ClassifyLine(context.Background(), line)
	if err != nil {
		t.Fatalf("ClassifyLine() error = %v", err)
	}
	if !result.Matched {
		t.Error("expected builtin join rule to match through the chain")
	}
}

func TestBuildClassifier_InvalidPatternFile(t *testing.T) {
	dir := t.TempDir()
	patternFile := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(patternFile, []byte("not: [valid"), 0644); err != nil {
		t.Fatal(err)
	}

	_, cleanup, err := buildClassifier(context.Background(), patternFile, "", nil)
	defer cleanup()
	if err == nil {
		t.Fatal("expected error for invalid pattern file")
	}
	if !strings.Contains(err.Error(), "pattern file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildClassifier_MissingPluginFile(t *testing.T) {
	_, cleanup, err := buildClassifier(context.Background(), "", "testdata/nonexistent.wasm", nil)
	defer cleanup()
	if err == nil {
		t.Fatal("expected error for missing plugin file")
	}
	if !strings.Contains(err.Error(), "plugin file") {
		t.Errorf("unexpected error: %v", err)
	}
}
