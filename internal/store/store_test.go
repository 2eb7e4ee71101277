package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrinehq/peregrine/internal/index"
)

// buildSnapshot assembles a table exercising every persisted shape: an
// identity with sub-second mod time, user keywords, a record with no
// identity, and a freed id.
func buildSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()
	table := index.NewTable()

	_, created := table.Upsert("docs/report.txt", &index.Identity{Dev: 2049, Ino: 101},
		time.Date(2024, time.March, 10, 8, 0, 0, 123456789, time.Local),
		index.NewKeywords("budget", "report"))
	require.True(t, created)

	id, created := table.Upsert("notes.md", &index.Identity{Dev: 2049, Ino: 102},
		time.Date(2024, time.March, 15, 12, 30, 0, 0, time.Local),
		index.NewKeywords("meeting"))
	require.True(t, created)
	require.True(t, table.AddUserKeywords(id, []string{"pinned"}))

	_, created = table.Upsert("plain.txt", nil,
		time.Date(2024, time.April, 1, 9, 0, 0, 0, time.Local),
		index.NewKeywords("plain"))
	require.True(t, created)

	scratch, created := table.Upsert("scratch.tmp", nil,
		time.Date(2024, time.April, 2, 9, 0, 0, 0, time.Local),
		index.NewKeywords("tmp"))
	require.True(t, created)
	require.True(t, table.Remove(scratch))

	return table.Snapshot()
}

func TestNewStore_UnknownBackend_Errors(t *testing.T) {
	// When
	st, err := NewStore(t.TempDir(), "bogus")

	// Then
	require.Error(t, err)
	assert.Nil(t, st)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestNewStore_DefaultsToSQLite(t *testing.T) {
	// Given
	dir := t.TempDir()

	// When
	st, err := NewStore(dir, "")

	// Then
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, filepath.Join(dir, "index.db"), st.Path())
}

func TestStore_RoundTrip_BothBackends(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			// Given
			dir := t.TempDir()
			snap := buildSnapshot(t)
			st, err := NewStore(dir, backend)
			require.NoError(t, err)
			defer st.Close()

			// When
			require.NoError(t, st.Save(context.Background(), snap))
			got, found, err := st.Load(context.Background())

			// Then every mapping survives byte for byte.
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, snap, got)

			// And the restored table passes a full consistency audit.
			restored, err := index.FromSnapshot(got)
			require.NoError(t, err)
			assert.Equal(t, 3, restored.Len())
			assert.Empty(t, restored.Verify().Inconsistencies)
		})
	}
}

func TestStore_RoundTrip_SurvivesReopen(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			// Given a snapshot saved and the store closed
			dir := t.TempDir()
			snap := buildSnapshot(t)

			st, err := NewStore(dir, backend)
			require.NoError(t, err)
			require.NoError(t, st.Save(context.Background(), snap))
			require.NoError(t, st.Close())

			// When a fresh store opens the same dir
			reopened, err := NewStore(dir, backend)
			require.NoError(t, err)
			defer reopened.Close()
			got, found, err := reopened.Load(context.Background())

			// Then
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, snap, got)
		})
	}
}

func TestStore_SaveReplacesPreviousSnapshot(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			// Given a saved snapshot
			dir := t.TempDir()
			st, err := NewStore(dir, backend)
			require.NoError(t, err)
			defer st.Close()
			require.NoError(t, st.Save(context.Background(), buildSnapshot(t)))

			// When a smaller table is saved over it
			table := index.NewTable()
			_, _ = table.Upsert("only.txt", nil,
				time.Date(2024, time.May, 1, 10, 0, 0, 0, time.Local),
				index.NewKeywords("solo"))
			second := table.Snapshot()
			require.NoError(t, st.Save(context.Background(), second))

			// Then nothing of the first snapshot bleeds through.
			got, found, err := st.Load(context.Background())
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, second, got)
			assert.Len(t, got.Records, 1)
		})
	}
}

func TestStore_EmptyTableSnapshot_RoundTrips(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			// Given the snapshot of a table that never tracked anything
			dir := t.TempDir()
			snap := index.NewTable().Snapshot()
			require.Equal(t, int64(-1), snap.LastID)

			st, err := NewStore(dir, backend)
			require.NoError(t, err)
			defer st.Close()

			// When
			require.NoError(t, st.Save(context.Background(), snap))
			got, found, err := st.Load(context.Background())

			// Then an empty snapshot is still a snapshot.
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, snap, got)
		})
	}
}

func TestStore_LoadBeforeAnySave_ReportsNotFound(t *testing.T) {
	for _, backend := range []string{"sqlite", "file"} {
		t.Run(backend, func(t *testing.T) {
			// Given
			st, err := NewStore(t.TempDir(), backend)
			require.NoError(t, err)
			defer st.Close()

			// When
			snap, found, err := st.Load(context.Background())

			// Then
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, snap)
		})
	}
}

func TestSQLiteStore_InMemory_RoundTrips(t *testing.T) {
	// Given
	st, err := NewSQLiteStore("")
	require.NoError(t, err)
	defer st.Close()
	snap := buildSnapshot(t)

	// When
	require.NoError(t, st.Save(context.Background(), snap))
	got, found, err := st.Load(context.Background())

	// Then
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap, got)
}

func TestSQLiteStore_CorruptDatabase_ClearedOnOpen(t *testing.T) {
	// Given a file that is not a SQLite database
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	require.NoError(t, os.WriteFile(path, []byte("garbage, not a database"), 0o644))

	// When
	st, err := NewSQLiteStore(path)

	// Then the store opens empty instead of failing.
	require.NoError(t, err)
	defer st.Close()
	snap, found, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, snap)
}

func TestSQLiteStore_CloseIsIdempotent(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)

	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
}

func TestFileStore_CorruptSnapshot_ClearedOnLoad(t *testing.T) {
	// Given bytes that are not a zstd frame
	dir := t.TempDir()
	path := filepath.Join(dir, "index.snap")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o644))

	// When
	st := NewFileStore(path)
	snap, found, err := st.Load(context.Background())

	// Then the broken file is gone and the caller starts fresh.
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, snap)
	assert.NoFileExists(t, path)
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	// Given
	dir := t.TempDir()
	st := NewFileStore(filepath.Join(dir, "index.snap"))

	// When
	require.NoError(t, st.Save(context.Background(), buildSnapshot(t)))

	// Then only the snapshot itself remains.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.snap", entries[0].Name())
}

func TestDetectBackend_ByExistingFile(t *testing.T) {
	// Given an empty data dir
	dir := t.TempDir()
	assert.Equal(t, Backend(""), DetectBackend(dir))

	// When a sqlite snapshot exists
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.db"), []byte("x"), 0o644))
	assert.Equal(t, BackendSQLite, DetectBackend(dir))

	// And when only a file snapshot exists
	require.NoError(t, os.Remove(filepath.Join(dir, "index.db")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.snap"), []byte("x"), 0o644))
	assert.Equal(t, BackendFile, DetectBackend(dir))
}

func TestIndexPath_PerBackend(t *testing.T) {
	dir := filepath.Join("ws", ".peregrine")

	assert.Equal(t, filepath.Join(dir, "index.db"), IndexPath(dir, "sqlite"))
	assert.Equal(t, filepath.Join(dir, "index.db"), IndexPath(dir, ""))
	assert.Equal(t, filepath.Join(dir, "index.snap"), IndexPath(dir, "file"))
}
