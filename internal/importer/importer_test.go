package importer

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/seiri/internal/archive"
	"github.com/vmunix/seiri/internal/events"
	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/internal/migrations"
	"github.com/vmunix/seiri/internal/torrent"
)

const testHash = "aabbccddeeff00112233445566778899aabbccdd"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupJobs(t *testing.T) *torrent.Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Apply(db))
	return torrent.NewStore(db)
}

func setupLibrary(t *testing.T) *library.Store {
	t.Helper()
	store, err := library.Open(filepath.Join(t.TempDir(), "library.toml"), testLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

// completedJob seeds a job that has run through the full download lifecycle.
func completedJob(t *testing.T, jobs *torrent.Store, showID string, season, episode int) *torrent.Job {
	t.Helper()
	j := &torrent.Job{
		Hash:   testHash,
		Name:   "[SubsPlease] Frieren - 07 [1080p].mkv",
		ShowID: showID,
		Season: season, Episode: episode,
	}
	require.NoError(t, jobs.Add(j))
	require.NoError(t, jobs.Transition(j, torrent.StatusDownloading))
	require.NoError(t, jobs.Transition(j, torrent.StatusCompleted))
	return j
}

func writeVideo(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("video payload"), 0o644))
	return path
}

func newImporter(t *testing.T, lib *library.Store, jobs *torrent.Store, bus *events.Bus, mediaDir string) *Importer {
	t.Helper()
	return New(lib, jobs, nil, bus, mediaDir, testLogger())
}

func TestImport_SingleEpisode(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 7)

	showDir := t.TempDir()
	require.NoError(t, lib.UpsertShow(library.Show{ID: "frieren", Title: "Frieren", Dir: showDir}))

	src := writeVideo(t, t.TempDir(), "[SubsPlease] Frieren - 07 [1080p].mkv")
	ev := events.NewDownloadCompleted(job.Hash, job.Name, "frieren", 0, 7, src)

	imp := newImporter(t, lib, jobs, events.NewBus(testLogger()), t.TempDir())
	res, err := imp.Import(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Zero(t, res.Conflicts)

	// file landed in the show directory, source is gone
	dst := filepath.Join(showDir, "[SubsPlease] Frieren - 07 [1080p].mkv")
	_, err = os.Stat(dst)
	require.NoError(t, err)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	ep, err := lib.FindEpisode("frieren", 0, 7)
	require.NoError(t, err)
	assert.Equal(t, dst, ep.Path)
	assert.False(t, ep.Watched)
	assert.Equal(t, int64(len("video payload")), ep.Size)

	got, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, torrent.StatusRemoved, got.Status)
}

func TestImport_CreatesShow(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 7)

	mediaDir := t.TempDir()
	src := writeVideo(t, t.TempDir(), "[SubsPlease] Frieren - 07 [1080p].mkv")
	ev := events.NewDownloadCompleted(job.Hash, job.Name, "frieren", 0, 7, src)

	imp := newImporter(t, lib, jobs, events.NewBus(testLogger()), mediaDir)
	_, err := imp.Import(context.Background(), ev)
	require.NoError(t, err)

	show, err := lib.GetShow("frieren")
	require.NoError(t, err)
	assert.Equal(t, "Frieren", show.Title)
	assert.Equal(t, filepath.Join(mediaDir, "frieren"), show.Dir)
}

func TestImport_WatchedCollision(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 7)

	showDir := t.TempDir()
	require.NoError(t, lib.UpsertShow(library.Show{ID: "frieren", Title: "Frieren", Dir: showDir}))
	existing := filepath.Join(showDir, "old.mkv")
	require.NoError(t, lib.UpsertEpisode("frieren", library.Episode{Number: 7, Path: existing}))
	require.NoError(t, lib.MarkWatched("frieren", 0, 7, true))

	bus := events.NewBus(testLogger())
	conflicts := bus.Subscribe(events.TypeImportConflict, 1)

	src := writeVideo(t, t.TempDir(), "[SubsPlease] Frieren - 07 [1080p].mkv")
	ev := events.NewDownloadCompleted(job.Hash, job.Name, "frieren", 0, 7, src)

	imp := newImporter(t, lib, jobs, bus, t.TempDir())
	res, err := imp.Import(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	assert.Zero(t, res.Imported)

	// file stays put, record untouched
	_, err = os.Stat(src)
	require.NoError(t, err)
	ep, err := lib.FindEpisode("frieren", 0, 7)
	require.NoError(t, err)
	assert.Equal(t, existing, ep.Path)
	assert.True(t, ep.Watched)

	select {
	case got := <-conflicts:
		conflict := got.(events.ImportConflict)
		assert.Equal(t, src, conflict.IncomingPath)
		assert.Equal(t, existing, conflict.ExistingPath)
	default:
		t.Fatal("expected a conflict event")
	}

	// unresolved payload keeps the job open
	jobAfter, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, torrent.StatusCompleted, jobAfter.Status)
}

func TestImport_SeasonPack(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 0)

	showDir := t.TempDir()
	require.NoError(t, lib.UpsertShow(library.Show{ID: "frieren", Title: "Frieren", Dir: showDir}))

	pack := t.TempDir()
	writeVideo(t, pack, "[SubsPlease] Frieren - 01 [1080p].mkv")
	writeVideo(t, pack, "[SubsPlease] Frieren - 02 [1080p].mkv")
	writeVideo(t, pack, "sample.mkv")
	writeVideo(t, pack, "extras.txt")

	ev := events.NewDownloadCompleted(job.Hash, job.Name, "frieren", 0, 0, pack)
	imp := newImporter(t, lib, jobs, events.NewBus(testLogger()), t.TempDir())
	res, err := imp.Import(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	for _, n := range []int{1, 2} {
		_, err := lib.FindEpisode("frieren", 0, n)
		assert.NoError(t, err, "episode %d", n)
	}
}

func TestImport_CompressOnImport(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 7)

	showDir := t.TempDir()
	require.NoError(t, lib.UpsertShow(library.Show{ID: "frieren", Title: "Frieren", Dir: showDir}))

	archiver := archive.NewManager(lib, archive.NewCodec(3, testLogger()), t.TempDir(), archive.ModeCompressed, testLogger())
	imp := New(lib, jobs, archiver, events.NewBus(testLogger()), t.TempDir(), testLogger())

	src := writeVideo(t, t.TempDir(), "[SubsPlease] Frieren - 07 [1080p].mkv")
	ev := events.NewDownloadCompleted(job.Hash, job.Name, "frieren", 0, 7, src)
	res, err := imp.Import(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	ep, err := lib.FindEpisode("frieren", 0, 7)
	require.NoError(t, err)
	assert.Equal(t, library.ArchivalCompressed, ep.Status)
	_, err = os.Stat(ep.ArchivePath)
	assert.NoError(t, err)
}

func TestImport_NoVideoFile(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 7)

	empty := t.TempDir()
	ev := events.NewDownloadCompleted(job.Hash, job.Name, "frieren", 0, 7, empty)
	imp := newImporter(t, lib, jobs, events.NewBus(testLogger()), t.TempDir())
	_, err := imp.Import(context.Background(), ev)
	assert.ErrorIs(t, err, ErrNoVideoFile)
}

func TestImport_FallsBackToJobEpisode(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "movie", 0, 1)

	require.NoError(t, lib.UpsertShow(library.Show{ID: "movie", Title: "Perfect Blue", Dir: t.TempDir()}))

	src := writeVideo(t, t.TempDir(), "Perfect Blue (1997).mkv")
	ev := events.NewDownloadCompleted(job.Hash, job.Name, "movie", 0, 1, src)
	imp := newImporter(t, lib, jobs, events.NewBus(testLogger()), t.TempDir())
	res, err := imp.Import(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	_, err = lib.FindEpisode("movie", 0, 1)
	assert.NoError(t, err)
}

func TestSweep_ImportsStrandedCompletedJob(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)

	showDir := t.TempDir()
	require.NoError(t, lib.UpsertShow(library.Show{ID: "frieren", Title: "Frieren", Dir: showDir}))

	// a job that reached Completed but whose completion event was lost
	src := writeVideo(t, t.TempDir(), "[SubsPlease] Frieren - 07 [1080p].mkv")
	job := completedJob(t, jobs, "frieren", 0, 7)
	job.ContentPath = src
	require.NoError(t, jobs.UpdateProgress(job))

	imp := newImporter(t, lib, jobs, events.NewBus(testLogger()), t.TempDir())
	require.NoError(t, imp.Sweep(context.Background()))

	ep, err := lib.FindEpisode("frieren", 0, 7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(showDir, "[SubsPlease] Frieren - 07 [1080p].mkv"), ep.Path)

	got, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, torrent.StatusRemoved, got.Status)
}

func TestSweep_SkipsJobsWithoutContentPath(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 7)

	imp := newImporter(t, lib, jobs, events.NewBus(testLogger()), t.TempDir())
	require.NoError(t, imp.Sweep(context.Background()))

	got, err := jobs.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, torrent.StatusCompleted, got.Status, "nothing to import yet, job stays")
}

func TestRun_ConsumesCompletionEvents(t *testing.T) {
	lib := setupLibrary(t)
	jobs := setupJobs(t)
	job := completedJob(t, jobs, "frieren", 0, 7)

	showDir := t.TempDir()
	require.NoError(t, lib.UpsertShow(library.Show{ID: "frieren", Title: "Frieren", Dir: showDir}))

	bus := events.NewBus(testLogger())
	imported := bus.Subscribe(events.TypeEpisodeImported, 1)
	imp := newImporter(t, lib, jobs, bus, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- imp.Run(ctx) }()

	src := writeVideo(t, t.TempDir(), "[SubsPlease] Frieren - 07 [1080p].mkv")
	bus.Publish(events.NewDownloadCompleted(job.Hash, job.Name, "frieren", 0, 7, src))

	select {
	case ev := <-imported:
		got := ev.(events.EpisodeImported)
		assert.Equal(t, 7, got.Episode)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for import")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
