package deadlog

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/deadlog/deadlog-go/internal/safefile"
	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// scanBufferSize is the read-ahead buffer for log file scans.
const scanBufferSize = 64 * 1024

// ctxCheckInterval is how many lines are processed between context checks.
const ctxCheckInterval = 1024

// ScanResult summarizes one incremental scan.
type ScanResult struct {
	// LinesProcessed is the number of complete lines consumed by this scan.
	LinesProcessed int64 `json:"lines_processed"`

	// LinesSkipped is the number of lines skipped by this scan (oversized,
	// undecodable, or failed classification).
	LinesSkipped int64 `json:"lines_skipped"`

	// QueueCount and PlayerCount are the live derived counts after the scan.
	QueueCount  int64 `json:"queue_count"`
	PlayerCount int64 `json:"player_count"`

	// Anomalies is the lifetime anomaly total for the server.
	Anomalies int64 `json:"anomalies"`

	// Rotated is true if the file shrank since the last scan and the cursor
	// was reset to zero. Counters survive rotation.
	Rotated bool `json:"rotated,omitempty"`

	// Cursor is the committed read position after the scan.
	Cursor Cursor `json:"cursor"`
}

// Scan reads the newly-appended content of the server's log file, classifies
// each complete line, and feeds matches through the state machine. Bytes
// before the cursor are never re-read; a trailing unterminated line is left
// for the next scan. Re-invoking without file growth is a no-op.
//
// Scans for the same ServerKey are serialized; concurrent calls block. The
// scan is cancellable via ctx: on cancellation nothing is committed, so the
// cursor and counters stay exactly as they were.
//
// A missing or unreadable file is reported as a *ScanError with the cursor
// unchanged; the caller simply retries on its next cycle.
func (t *Tracker) Scan(ctx context.Context, key ServerKey, path string) (ScanResult, error) {
	st, err := t.state(ctx, key)
	if err != nil {
		return ScanResult{}, err
	}

	st.scanMu.Lock()
	defer st.scanMu.Unlock()

	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	f, info, err := safefile.OpenRegular(path)
	if err != nil {
		return ScanResult{}, &ScanError{Op: ScanOpOpen, Path: path, Err: err}
	}
	defer f.Close()

	st.mu.RLock()
	cur := st.cursor
	st.mu.RUnlock()

	size := info.Size()
	rotated := false

	// A shrinking file means rotation or truncation: the read position resets
	// but the population counts survive the boundary.
	if size < cur.FileSize || cur.Offset > size {
		t.log.Debug("log rotation detected, resetting cursor",
			"key", key.String(), "old_size", cur.FileSize, "new_size", size)
		cur = Cursor{}
		rotated = true
	}

	batch, err := t.readBatch(ctx, f, cur.Offset, size)
	if err != nil {
		return ScanResult{}, err
	}

	// Commit phase: apply the whole batch and advance the cursor atomically
	// under the data lock. Readers never see a half-applied scan.
	st.mu.Lock()
	batch.skipped += applyEvents(st.presence, batch.events)
	st.cursor = Cursor{
		Offset:   cur.Offset + batch.consumed,
		Lines:    cur.Lines + batch.lines,
		FileSize: size,
	}
	st.linesScanned += batch.lines
	st.linesSkipped += batch.skipped
	pc, qc := st.presence.counts()
	result := ScanResult{
		LinesProcessed: batch.lines,
		LinesSkipped:   batch.skipped,
		QueueCount:     qc,
		PlayerCount:    pc,
		Anomalies:      st.presence.anomalies,
		Rotated:        rotated,
		Cursor:         st.cursor,
	}
	snapshot := st.storedStateLocked()
	st.mu.Unlock()

	if t.cfg.store != nil {
		if err := t.cfg.store.Save(ctx, key, snapshot); err != nil {
			// The in-memory state is already committed and the next scan
			// re-saves the full snapshot, so the result stays valid.
			t.log.Warn("failed to persist scan state", "key", key.String(), "error", err)
			return result, &ScanError{Op: ScanOpPersist, Path: path, Err: err}
		}
	}

	t.log.Debug("scan complete",
		"key", key.String(),
		"lines", batch.lines,
		"queue_count", qc,
		"player_count", pc)
	return result, nil
}

// lineBatch is everything a scan pass collected before commit.
type lineBatch struct {
	events   []event.Event
	consumed int64 // bytes of complete lines, including newlines
	lines    int64
	skipped  int64
}

// readBatch reads and classifies all complete lines between offset and size.
// It runs entirely outside the data lock; classification errors skip the line
// and only I/O failures or cancellation abort the batch.
func (t *Tracker) readBatch(ctx context.Context, f io.ReadSeeker, offset, size int64) (lineBatch, error) {
	var batch lineBatch

	remaining := size - offset
	if remaining <= 0 {
		return batch, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return lineBatch{}, &ScanError{Op: ScanOpSeek, Err: err}
	}

	// The limit pins the scan to the size observed at open time, so a file
	// growing mid-read cannot push the cursor past the committed FileSize.
	r := bufio.NewReaderSize(io.LimitReader(f, remaining), scanBufferSize)

	for {
		if batch.lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return lineBatch{}, err
			}
		}

		line, err := r.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return lineBatch{}, &ScanError{Op: ScanOpRead, Err: err}
			}
			// A trailing partial line is never consumed: it may still be
			// half-written, and the next scan will read it in full.
			return batch, nil
		}

		batch.consumed += int64(len(line))
		batch.lines++

		line = strings.TrimSuffix(line, "\n")
		if len(line) > t.cfg.maxLineBytes {
			batch.skipped++
			continue
		}
		// Permissive decoding: invalid byte sequences are replaced, not fatal.
		line = strings.ToValidUTF8(line, "�")

		res, cerr := t.cfg.classifier.ClassifyLine(ctx, line)
		if cerr != nil {
			batch.skipped++
			t.log.Debug("line classification failed", "error", &ClassifyError{Line: line, Err: cerr})
			continue
		}
		if res.Matched {
			batch.events = append(batch.events, res.Events...)
		}
	}
}
