package deadlog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadlog/deadlog-go/pkg/deadlog"
)

const tsPrefix = "[2025.05.17-02.01.30:829][  0]"

func queueLine(name, id string) string {
	return tsPrefix + "LogNet: Join request: /Game/Maps/world_0/World_0?logintype=eos&login=" +
		name + "&Name=" + name + "&eosid=|" + id
}

func joinLine(id string) string {
	return tsPrefix + "LogBeacon: Beacon Join SFPSOnlineBeaconClient EOS:|" + id
}

func dropLine(id string) string {
	return tsPrefix + "LogNet: UChannel::Close: Sending CloseBunch. ChIndex == 0. UniqueId: EOS:|" + id
}

func queueDropLine(id string) string {
	return tsPrefix + "LogOnline: Warning: Player EOS:|" + id + " left the queue"
}

// writeLog creates a log file with the given lines, each newline-terminated.
func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Deadside.log")
	writeLogAt(t, path, lines...)
	return path
}

func writeLogAt(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// appendLog appends raw content to an existing log file.
func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func newTracker(t *testing.T, opts ...deadlog.Option) *deadlog.Tracker {
	t.Helper()
	tracker, err := deadlog.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })
	return tracker
}

var testKey = deadlog.ServerKey{GuildID: "guild-1", ServerID: "eu-main"}

func TestScan_LifecycleCounts(t *testing.T) {
	// Two players queue, one completes joining, then both disconnect. The
	// joined player's disconnect counts against the player total, the queued
	// player's against the queue total.
	path := writeLog(t,
		queueLine("Alice", "aaaa0001"),
		queueLine("Bob", "aaaa0002"),
		joinLine("aaaa0001"),
		dropLine("aaaa0001"),
		dropLine("aaaa0002"),
	)

	tracker := newTracker(t)
	res, err := tracker.Scan(context.Background(), testKey, path)
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.LinesProcessed)
	assert.Equal(t, int64(0), res.PlayerCount)
	assert.Equal(t, int64(0), res.QueueCount)
	assert.Equal(t, int64(0), res.Anomalies)

	counters, err := tracker.Counters(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counters.QueueJoins)
	assert.Equal(t, int64(1), counters.PlayerJoins)
	assert.Equal(t, int64(1), counters.PostJoinDisconnects)
	assert.Equal(t, int64(1), counters.PreJoinDisconnects)
}

func TestScan_LiveCounts(t *testing.T) {
	path := writeLog(t,
		queueLine("Alice", "aaaa0001"),
		queueLine("Bob", "aaaa0002"),
		queueLine("Carol", "aaaa0003"),
		joinLine("aaaa0001"),
		joinLine("aaaa0002"),
	)

	tracker := newTracker(t)
	res, err := tracker.Scan(context.Background(), testKey, path)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.PlayerCount)
	assert.Equal(t, int64(1), res.QueueCount)
}

func TestScan_UnseenDisconnectCountsPreJoin(t *testing.T) {
	// A disconnect for a player that never queued nor joined lands on the
	// pre-join total and drives the derived queue count negative, which is
	// clamped and recorded as an anomaly.
	path := writeLog(t, dropLine("aaaa00ff"))

	tracker := newTracker(t)
	res, err := tracker.Scan(context.Background(), testKey, path)
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.QueueCount)
	assert.Equal(t, int64(0), res.PlayerCount)
	assert.Equal(t, int64(1), res.Anomalies)

	counters, err := tracker.Counters(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.PreJoinDisconnects)
	assert.Equal(t, int64(1), counters.Anomalies)
}

func TestScan_Incremental(t *testing.T) {
	path := writeLog(t,
		queueLine("Alice", "aaaa0001"),
		queueLine("Bob", "aaaa0002"),
	)

	tracker := newTracker(t)
	ctx := context.Background()

	res, err := tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LinesProcessed)
	assert.Equal(t, int64(2), res.QueueCount)

	appendLog(t, path, joinLine("aaaa0001")+"\n")

	res, err = tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LinesProcessed, "only the appended line is read")
	assert.Equal(t, int64(1), res.PlayerCount)
	assert.Equal(t, int64(1), res.QueueCount)
	assert.Equal(t, int64(3), res.Cursor.Lines)
}

func TestScan_NoGrowthIsNoOp(t *testing.T) {
	path := writeLog(t, queueLine("Alice", "aaaa0001"))

	tracker := newTracker(t)
	ctx := context.Background()

	first, err := tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)

	second, err := tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.LinesProcessed)
	assert.Equal(t, first.Cursor, second.Cursor)
	assert.Equal(t, first.QueueCount, second.QueueCount)
}

func TestScan_TrailingPartialLine(t *testing.T) {
	path := writeLog(t, queueLine("Alice", "aaaa0001"))
	// Half-written join line without a trailing newline.
	partial := joinLine("aaaa0001")
	half := partial[:len(partial)/2]
	appendLog(t, path, half)

	tracker := newTracker(t)
	ctx := context.Background()

	res, err := tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LinesProcessed, "partial line must not be consumed")
	assert.Equal(t, int64(0), res.PlayerCount)

	// Complete the line; the next scan re-reads it from the start.
	appendLog(t, path, partial[len(half):]+"\n")

	res, err = tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LinesProcessed)
	assert.Equal(t, int64(1), res.PlayerCount)
}

func TestScan_RotationResetsCursorKeepsCounters(t *testing.T) {
	path := writeLog(t,
		queueLine("Alice", "aaaa0001"),
		queueLine("Bob", "aaaa0002"),
		joinLine("aaaa0001"),
	)

	tracker := newTracker(t)
	ctx := context.Background()

	res, err := tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.PlayerCount)
	assert.Equal(t, int64(1), res.QueueCount)

	// Rotate: the file is replaced by a shorter one.
	writeLogAt(t, path, joinLine("aaaa0002"))

	res, err = tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.True(t, res.Rotated)
	assert.Equal(t, int64(1), res.LinesProcessed, "new file is read from byte zero")
	assert.Equal(t, int64(2), res.PlayerCount, "counters survive the rotation")
	assert.Equal(t, int64(0), res.QueueCount)
	assert.Equal(t, int64(1), res.Cursor.Lines)
}

func TestScan_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Deadside.log")

	tracker := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Scan(ctx, testKey, path)
	require.Error(t, err)

	var scanErr *deadlog.ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, deadlog.ScanOpOpen, scanErr.Op)
	assert.Equal(t, path, scanErr.Path)

	// The file appears later; the retry starts from byte zero.
	writeLogAt(t, path, queueLine("Alice", "aaaa0001"))

	res, err := tracker.Scan(ctx, testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LinesProcessed)
	assert.Equal(t, int64(1), res.QueueCount)
}

func TestScan_CancelledContextCommitsNothing(t *testing.T) {
	path := writeLog(t, queueLine("Alice", "aaaa0001"))

	tracker := newTracker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tracker.Scan(ctx, testKey, path)
	require.ErrorIs(t, err, context.Canceled)

	res, err := tracker.Scan(context.Background(), testKey, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LinesProcessed, "cancelled scan must not advance the cursor")
}

func TestScan_OversizedLineSkipped(t *testing.T) {
	long := tsPrefix + "LogSFPS: " + strings.Repeat("x", 300)
	path := writeLog(t, long, queueLine("Alice", "aaaa0001"))

	tracker := newTracker(t, deadlog.WithMaxLineBytes(256))
	res, err := tracker.Scan(context.Background(), testKey, path)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.LinesProcessed)
	assert.Equal(t, int64(1), res.LinesSkipped)
	assert.Equal(t, int64(1), res.QueueCount)
}

func TestScan_ClassifierErrorSkipsLine(t *testing.T) {
	path := writeLog(t, "bad line", queueLine("Alice", "aaaa0001"))

	boom := errors.New("boom")
	custom := deadlog.ClassifierFunc(func(ctx context.Context, line string) (deadlog.ClassifyResult, error) {
		if line == "bad line" {
			return deadlog.ClassifyResult{}, boom
		}
		return deadlog.DefaultClassifier{}.ClassifyLine(ctx, line)
	})

	tracker := newTracker(t, deadlog.WithClassifier(custom))
	res, err := tracker.Scan(context.Background(), testKey, path)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.LinesProcessed)
	assert.Equal(t, int64(1), res.LinesSkipped)
	assert.Equal(t, int64(1), res.QueueCount)
}

func TestScan_DistinctKeysAreIndependent(t *testing.T) {
	pathA := writeLog(t, queueLine("Alice", "aaaa0001"))
	pathB := writeLog(t,
		queueLine("Bob", "aaaa0002"),
		joinLine("aaaa0002"),
	)

	tracker := newTracker(t)
	ctx := context.Background()

	keyA := deadlog.ServerKey{GuildID: "g", ServerID: "a"}
	keyB := deadlog.ServerKey{GuildID: "g", ServerID: "b"}

	resA, err := tracker.Scan(ctx, keyA, pathA)
	require.NoError(t, err)
	resB, err := tracker.Scan(ctx, keyB, pathB)
	require.NoError(t, err)

	assert.Equal(t, int64(1), resA.QueueCount)
	assert.Equal(t, int64(0), resA.PlayerCount)
	assert.Equal(t, int64(0), resB.QueueCount)
	assert.Equal(t, int64(1), resB.PlayerCount)
}
