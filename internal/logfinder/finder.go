// Package logfinder locates Deadside server log files.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EnvLogDir is the environment variable name for specifying the log directory.
const EnvLogDir = "DEADLOG_LOGDIR"

// logGlob matches the live log plus its rotated backups
// (Deadside.log, Deadside-backup-2025.05.17-04.00.00.log).
const logGlob = "Deadside*.log"

// Sentinel errors.
var (
	ErrLogDirNotFound = errors.New("log directory not found")
	ErrNoLogFiles     = errors.New("no log files found")
)

// DefaultLogDirs returns candidate Deadside log directories in priority
// order, relative to the working directory. Dedicated servers write under
// Deadside/Saved/Logs inside the install root.
func DefaultLogDirs() []string {
	return []string{
		filepath.Join("Deadside", "Saved", "Logs"),
		filepath.Join("deadside", "Saved", "Logs"),
		"Logs",
	}
}

// FindLogDir returns the Deadside log directory.
//
// Priority:
//  1. explicit (if non-empty)
//  2. DEADLOG_LOGDIR environment variable
//  3. Auto-detect from DefaultLogDirs()
//
// Returns ErrLogDirNotFound if no valid directory is found.
// The returned path has symlinks resolved for consistency.
func FindLogDir(explicit string) (string, error) {
	if explicit != "" {
		if resolved := resolveAndValidateLogDir(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: specified directory is invalid or contains no log files", ErrLogDirNotFound)
	}

	if envDir := os.Getenv(EnvLogDir); envDir != "" {
		if resolved := resolveAndValidateLogDir(envDir); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s environment variable points to invalid directory", ErrLogDirNotFound, EnvLogDir)
	}

	for _, dir := range DefaultLogDirs() {
		if resolved := resolveAndValidateLogDir(dir); resolved != "" {
			return resolved, nil
		}
	}

	return "", ErrLogDirNotFound
}

// logCandidate holds a log file path and its cached modification time, so a
// file deleted between stat and sort cannot skew the ordering.
type logCandidate struct {
	path    string
	modTime int64
}

// FindLatestLogFile returns the path to the most recently modified Deadside
// log file in the given directory.
//
// Returns ErrNoLogFiles if no log files are found.
func FindLatestLogFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, logGlob))
	if err != nil {
		return "", fmt.Errorf("globbing log files: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNoLogFiles
	}

	candidates := make([]logCandidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil {
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, logCandidate{
			path:    m,
			modTime: info.ModTime().UnixNano(),
		})
	}

	if len(candidates) == 0 {
		return "", ErrNoLogFiles
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime > candidates[j].modTime
	})

	return candidates[0].path, nil
}

// ResolvePath resolves a configured log path to a concrete file: a path that
// names a directory resolves to the newest log file inside it, anything else
// is returned as-is. Server configs may point at either.
func ResolvePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return FindLatestLogFile(path)
	}
	return path, nil
}

// resolveAndValidateLogDir resolves symlinks and validates that dir exists
// and contains at least one log file. Returns "" when invalid.
func resolveAndValidateLogDir(dir string) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}

	matches, err := filepath.Glob(filepath.Join(resolved, logGlob))
	if err != nil || len(matches) == 0 {
		return ""
	}

	return resolved
}
