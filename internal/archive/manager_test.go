package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/seiri/internal/library"
)

func newTestManager(t *testing.T, mode Mode) (*Manager, *library.Store, string) {
	t.Helper()
	store, err := library.Open(filepath.Join(t.TempDir(), "library.toml"), testLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	archiveDir := t.TempDir()
	m := NewManager(store, NewCodec(3, testLogger()), archiveDir, mode, testLogger())
	return m, store, archiveDir
}

func seedEpisode(t *testing.T, store *library.Store, showID string, number int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ep.mkv")
	require.NoError(t, os.WriteFile(path, []byte("episode bytes"), 0o644))
	require.NoError(t, store.UpsertShow(library.Show{ID: showID, Title: showID, Dir: dir}))
	require.NoError(t, store.UpsertEpisode(showID, library.Episode{Number: number, Path: path, Size: 13}))
	return path
}

func TestGhostEpisode(t *testing.T) {
	m, store, _ := newTestManager(t, ModeGhost)
	path := seedEpisode(t, store, "x", 1)
	require.NoError(t, store.MarkWatched("x", 0, 1, true))

	require.NoError(t, m.GhostEpisode("x", 0, 1))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	ep, err := store.FindEpisode("x", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, library.ArchivalGhosted, ep.Status)
	assert.Empty(t, ep.Path)
	assert.True(t, ep.Watched, "ghosting keeps watch state")

	// second ghost is a no-op
	require.NoError(t, m.GhostEpisode("x", 0, 1))
}

func TestCompressEpisode(t *testing.T) {
	m, store, archiveDir := newTestManager(t, ModeCompressed)
	path := seedEpisode(t, store, "x", 1)

	require.NoError(t, m.CompressEpisode("x", 0, 1))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	ep, err := store.FindEpisode("x", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, library.ArchivalCompressed, ep.Status)
	assert.Equal(t, filepath.Join(archiveDir, "x", "ep.mkv.zst"), ep.ArchivePath)

	_, err = os.Stat(ep.ArchivePath)
	assert.NoError(t, err)
}

func TestRestoreEpisode(t *testing.T) {
	m, store, _ := newTestManager(t, ModeCompressed)
	path := seedEpisode(t, store, "x", 1)
	require.NoError(t, m.CompressEpisode("x", 0, 1))

	compressed, err := store.FindEpisode("x", 0, 1)
	require.NoError(t, err)

	require.NoError(t, m.RestoreEpisode("x", 0, 1))

	ep, err := store.FindEpisode("x", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, library.ArchivalActive, ep.Status)
	assert.Equal(t, path, ep.Path)
	assert.Empty(t, ep.ArchivePath)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "episode bytes", string(data))

	_, err = os.Stat(compressed.ArchivePath)
	assert.True(t, os.IsNotExist(err), "archive deleted after restore")
}

func TestRestoreEpisode_NotCompressed(t *testing.T) {
	m, store, _ := newTestManager(t, ModeCompressed)
	seedEpisode(t, store, "x", 1)

	err := m.RestoreEpisode("x", 0, 1)
	assert.Error(t, err)
}

func TestArchiveShow_ModeDispatch(t *testing.T) {
	m, store, _ := newTestManager(t, ModeGhost)
	seedEpisode(t, store, "x", 1)
	require.NoError(t, store.UpsertEpisode("x", library.Episode{Number: 2, Status: library.ArchivalGhosted}))

	require.NoError(t, m.ArchiveShow(context.Background(), "x"))

	ep, err := store.FindEpisode("x", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, library.ArchivalGhosted, ep.Status)
}

func TestArchiveShow_HonorsContext(t *testing.T) {
	m, store, _ := newTestManager(t, ModeGhost)
	seedEpisode(t, store, "x", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.ArchiveShow(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
