package history_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/matrix/internal/adapters/history"
	"go.trai.ch/matrix/internal/core/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id string, offset time.Duration, succeeded bool) domain.RunRecord {
	state := domain.StateSucceeded
	if !succeeded {
		state = domain.StateFailed
	}
	return domain.RunRecord{
		ID:         id,
		StartedAt:  base.Add(offset),
		FinishedAt: base.Add(offset + time.Minute),
		Provider:   domain.ProviderDagger,
		Policy:     domain.FailAtEnd,
		Succeeded:  succeeded,
		Entries: []domain.EntryRecord{
			{Version: "20", Image: "node:20", State: state, FailedStep: -1, Duration: time.Minute},
		},
	}
}

func TestFileStore_PutAndList(t *testing.T) {
	ctx := context.Background()
	store := history.NewFileStore(filepath.Join(t.TempDir(), "history"))

	require.NoError(t, store.Put(ctx, record("a", 0, true)))
	require.NoError(t, store.Put(ctx, record("c", 2*time.Hour, false)))
	require.NoError(t, store.Put(ctx, record("b", time.Hour, true)))

	got, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, record("c", 2*time.Hour, false), got[0])

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "c", limited[0].ID)
}

func TestFileStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	store := history.NewFileStore(t.TempDir())

	require.NoError(t, store.Put(ctx, record("a", 0, false)))
	require.NoError(t, store.Put(ctx, record("a", 0, true)))

	got, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Succeeded)
}

func TestFileStore_MissingDirectory(t *testing.T) {
	ctx := context.Background()
	store := history.NewFileStore(filepath.Join(t.TempDir(), "missing"))

	got, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, store.Clear(ctx))
}

func TestFileStore_Clear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := history.NewFileStore(dir)
	require.NoError(t, store.Put(ctx, record("a", 0, true)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))

	require.NoError(t, store.Clear(ctx))

	got, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	require.NoError(t, store.Close())
}

func TestFileStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))

	_, err := history.NewFileStore(dir).List(ctx, 0)
	require.ErrorIs(t, err, domain.ErrHistoryReadFailed)
}

func TestSortNewestFirst_TiesByID(t *testing.T) {
	records := []domain.RunRecord{record("a", 0, true), record("b", 0, true)}
	history.SortNewestFirst(records)
	assert.Equal(t, "b", records[0].ID)
}

func TestOpen_DefaultsToFileStore(t *testing.T) {
	stateDir := t.TempDir()
	store, err := history.Open(context.Background(), domain.HistoryConfig{}, stateDir)
	require.NoError(t, err)
	assert.IsType(t, &history.FileStore{}, store)

	require.NoError(t, store.Put(context.Background(), record("a", 0, true)))
	entries, err := os.ReadDir(filepath.Join(stateDir, domain.HistoryDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
