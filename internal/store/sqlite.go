// Package store persists tracker state in SQLite so cursors and counters
// survive process restarts.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deadlog/deadlog-go/pkg/deadlog"
)

//go:embed schema.sql
var schema string

// formatTimestamp converts time.Time to a SQLite-compatible UTC ISO8601
// string. The Z suffix makes the driver parse it back as UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Store is a deadlog.StateStore backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open creates a Store with the given database path, creating the schema if
// needed. Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored state for key, with found=false if none exists.
func (s *Store) Load(ctx context.Context, key deadlog.ServerKey) (deadlog.StoredState, bool, error) {
	var st deadlog.StoredState
	err := s.db.QueryRowContext(ctx, `
		SELECT cursor_offset, cursor_lines, cursor_file_size,
		       queue_joins, player_joins, post_join_disconnects, pre_join_disconnects,
		       lines_scanned, lines_skipped, anomalies
		FROM server_state WHERE guild_id = ? AND server_id = ?
	`, key.GuildID, key.ServerID).Scan(
		&st.Cursor.Offset, &st.Cursor.Lines, &st.Cursor.FileSize,
		&st.Counters.QueueJoins, &st.Counters.PlayerJoins,
		&st.Counters.PostJoinDisconnects, &st.Counters.PreJoinDisconnects,
		&st.Counters.LinesScanned, &st.Counters.LinesSkipped, &st.Counters.Anomalies,
	)
	if err == sql.ErrNoRows {
		return deadlog.StoredState{}, false, nil
	}
	if err != nil {
		return deadlog.StoredState{}, false, err
	}

	// Derived counts are recomputed, not stored.
	st.Counters.PlayerCount = clampZero(st.Counters.PlayerJoins - st.Counters.PostJoinDisconnects)
	st.Counters.QueueCount = clampZero(st.Counters.QueueJoins - st.Counters.PlayerJoins - st.Counters.PreJoinDisconnects)
	return st, true, nil
}

// Save writes the full state snapshot for key, replacing any previous one.
func (s *Store) Save(ctx context.Context, key deadlog.ServerKey, st deadlog.StoredState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_state (
			guild_id, server_id,
			cursor_offset, cursor_lines, cursor_file_size,
			queue_joins, player_joins, post_join_disconnects, pre_join_disconnects,
			lines_scanned, lines_skipped, anomalies, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, server_id) DO UPDATE SET
			cursor_offset = excluded.cursor_offset,
			cursor_lines = excluded.cursor_lines,
			cursor_file_size = excluded.cursor_file_size,
			queue_joins = excluded.queue_joins,
			player_joins = excluded.player_joins,
			post_join_disconnects = excluded.post_join_disconnects,
			pre_join_disconnects = excluded.pre_join_disconnects,
			lines_scanned = excluded.lines_scanned,
			lines_skipped = excluded.lines_skipped,
			anomalies = excluded.anomalies,
			updated_at = excluded.updated_at
	`, key.GuildID, key.ServerID,
		st.Cursor.Offset, st.Cursor.Lines, st.Cursor.FileSize,
		st.Counters.QueueJoins, st.Counters.PlayerJoins,
		st.Counters.PostJoinDisconnects, st.Counters.PreJoinDisconnects,
		st.Counters.LinesScanned, st.Counters.LinesSkipped, st.Counters.Anomalies,
		formatTimestamp(time.Now()))
	return err
}

// Delete removes the record for key. Returns false if none existed.
func (s *Store) Delete(ctx context.Context, key deadlog.ServerKey) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM server_state WHERE guild_id = ? AND server_id = ?
	`, key.GuildID, key.ServerID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteGuild removes every record under the guild and returns how many were
// deleted.
func (s *Store) DeleteGuild(ctx context.Context, guildID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM server_state WHERE guild_id = ?
	`, guildID)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Keys returns every persisted ServerKey, ordered by guild then server.
func (s *Store) Keys(ctx context.Context) ([]deadlog.ServerKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, server_id FROM server_state ORDER BY guild_id, server_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []deadlog.ServerKey
	for rows.Next() {
		var key deadlog.ServerKey
		if err := rows.Scan(&key.GuildID, &key.ServerID); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func clampZero(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

var _ deadlog.StateStore = (*Store)(nil)
