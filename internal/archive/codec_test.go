package archive

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ep01.mkv")
	payload := strings.Repeat("not actually video data ", 4096)
	require.NoError(t, os.WriteFile(src, []byte(payload), 0o644))

	codec := NewCodec(3, testLogger())
	archivePath, err := codec.Compress(src, "")
	require.NoError(t, err)
	assert.Equal(t, src+".zst", archivePath)

	// source is gone once the archive is verified
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	// repetitive input must actually shrink
	fi, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.Less(t, fi.Size(), int64(len(payload)))

	restored, err := codec.DecompressTo(archivePath, "")
	require.NoError(t, err)
	assert.Equal(t, src, restored)

	data, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestCompress_ExplicitDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ep01.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	dst := filepath.Join(dir, "archives", "show", "ep01.mkv.zst")
	codec := NewCodec(19, testLogger())
	archivePath, err := codec.Compress(src, dst)
	require.NoError(t, err)
	assert.Equal(t, dst, archivePath)

	_, err = os.Stat(dst)
	require.NoError(t, err)
}

func TestCompress_MissingSource(t *testing.T) {
	codec := NewCodec(3, testLogger())
	_, err := codec.Compress(filepath.Join(t.TempDir(), "nope.mkv"), "")
	assert.ErrorIs(t, err, ErrPartialArchive)
}

func TestCompress_NoPartialLeftBehind(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ep01.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	codec := NewCodec(3, testLogger())
	_, err := codec.Compress(src, "")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".partial"), e.Name())
	}
}

func TestDecompressScratch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ep02.mkv")
	require.NoError(t, os.WriteFile(src, []byte("scratch payload"), 0o644))

	codec := NewCodec(3, testLogger())
	archivePath, err := codec.Compress(src, "")
	require.NoError(t, err)

	scratch := t.TempDir()
	playable, err := codec.DecompressScratch(archivePath, scratch)
	require.NoError(t, err)
	assert.Equal(t, "ep02.mkv", filepath.Base(playable))
	assert.True(t, strings.HasPrefix(playable, scratch))

	data, err := os.ReadFile(playable)
	require.NoError(t, err)
	assert.Equal(t, "scratch payload", string(data))

	// archive untouched, playback copy is disposable
	_, err = os.Stat(archivePath)
	assert.NoError(t, err)
}

func TestCleanPartials(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "show"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "show", "ep01.mkv.zst.partial"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "show", "ep02.mkv.zst"), []byte("keep"), 0o644))

	removed, err := CleanPartials(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(dir, "show", "ep01.mkv.zst.partial"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "show", "ep02.mkv.zst"))
	assert.NoError(t, err)
}

func TestCleanPartials_MissingDir(t *testing.T) {
	removed, err := CleanPartials(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestArchiveNames(t *testing.T) {
	assert.Equal(t, "/x/ep.mkv.zst", ArchiveName("/x/ep.mkv"))
	assert.Equal(t, "/x/ep.mkv", SourceName("/x/ep.mkv.zst"))
	assert.Equal(t, "/x/plain", SourceName("/x/plain"))
}
