package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadlog/deadlog-go/internal/store"
	"github.com/deadlog/deadlog-go/pkg/deadlog"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "deadlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleState() deadlog.StoredState {
	return deadlog.StoredState{
		Cursor: deadlog.Cursor{Offset: 4096, Lines: 120, FileSize: 4100},
		Counters: deadlog.Counters{
			QueueJoins:          10,
			PlayerJoins:         7,
			PostJoinDisconnects: 3,
			PreJoinDisconnects:  2,
			LinesScanned:        120,
			LinesSkipped:        1,
			Anomalies:           0,
		},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	key := deadlog.ServerKey{GuildID: "guild-1", ServerID: "eu-main"}

	_, found, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	want := sampleState()
	require.NoError(t, s.Save(ctx, key, want))

	got, found, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want.Cursor, got.Cursor)
	assert.Equal(t, want.Counters.QueueJoins, got.Counters.QueueJoins)
	assert.Equal(t, want.Counters.PlayerJoins, got.Counters.PlayerJoins)
	assert.Equal(t, int64(4), got.Counters.PlayerCount, "derived counts recomputed on load")
	assert.Equal(t, int64(1), got.Counters.QueueCount)
}

func TestStore_SaveReplaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	key := deadlog.ServerKey{GuildID: "guild-1", ServerID: "eu-main"}

	first := sampleState()
	require.NoError(t, s.Save(ctx, key, first))

	second := first
	second.Cursor.Offset = 8192
	second.Counters.QueueJoins = 15
	require.NoError(t, s.Save(ctx, key, second))

	got, found, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(8192), got.Cursor.Offset)
	assert.Equal(t, int64(15), got.Counters.QueueJoins)
}

func TestStore_Delete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	key := deadlog.ServerKey{GuildID: "guild-1", ServerID: "eu-main"}

	deleted, err := s.Delete(ctx, key)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, s.Save(ctx, key, sampleState()))

	deleted, err = s.Delete(ctx, key)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_DeleteGuild(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, key := range []deadlog.ServerKey{
		{GuildID: "guild-1", ServerID: "a"},
		{GuildID: "guild-1", ServerID: "b"},
		{GuildID: "guild-2", ServerID: "c"},
	} {
		require.NoError(t, s.Save(ctx, key, sampleState()))
	}

	n, err := s.DeleteGuild(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err := s.Load(ctx, deadlog.ServerKey{GuildID: "guild-2", ServerID: "c"})
	require.NoError(t, err)
	assert.True(t, found, "other guilds must be untouched")
}

func TestStore_Keys(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	keys := []deadlog.ServerKey{
		{GuildID: "guild-2", ServerID: "c"},
		{GuildID: "guild-1", ServerID: "b"},
		{GuildID: "guild-1", ServerID: "a"},
	}
	for _, key := range keys {
		require.NoError(t, s.Save(ctx, key, sampleState()))
	}

	got, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []deadlog.ServerKey{
		{GuildID: "guild-1", ServerID: "a"},
		{GuildID: "guild-1", ServerID: "b"},
		{GuildID: "guild-2", ServerID: "c"},
	}, got)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deadlog.db")
	ctx := context.Background()
	key := deadlog.ServerKey{GuildID: "guild-1", ServerID: "eu-main"}

	s, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, key, sampleState()))
	require.NoError(t, s.Close())

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, found, err := s2.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sampleState().Cursor, got.Cursor)
}
