package deadlog

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrServerNotFound is returned by inspection and reset operations for a
	// ServerKey that has never been scanned and has no persisted state.
	ErrServerNotFound = errors.New("server not tracked")
)

// ScanOp identifies the operation during which a scan or replay failed.
type ScanOp string

const (
	ScanOpOpen    ScanOp = "open"
	ScanOpSeek    ScanOp = "seek"
	ScanOpRead    ScanOp = "read"
	ScanOpRestore ScanOp = "restore"
	ScanOpPersist ScanOp = "persist"
)

// ScanError wraps a failure while scanning or replaying a log file.
// The cursor and counters of the affected server are left untouched; the
// operation can simply be retried on the next cycle.
type ScanError struct {
	Op   ScanOp
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("scan %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("scan %s: %v", e.Op, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ClassifyError wraps a classifier failure for a single line. Lines that fail
// classification are skipped and tallied, never fatal to a scan.
type ClassifyError struct {
	Line string
	Err  error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classify line %q: %v", truncateLine(e.Line, 80), e.Err)
}

func (e *ClassifyError) Unwrap() error {
	return e.Err
}

func truncateLine(line string, max int) string {
	if len(line) <= max {
		return line
	}
	return line[:max] + "..."
}
