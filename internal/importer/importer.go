// Package importer lands completed downloads in the library. It listens for
// completion events from the torrent poller, infers episode identity from
// filenames, moves files into the show directory and closes out the job.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vmunix/seiri/internal/archive"
	"github.com/vmunix/seiri/internal/events"
	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/internal/torrent"
	"github.com/vmunix/seiri/pkg/release"
)

// Importer processes completed downloads.
type Importer struct {
	library  *library.Store
	jobs     *torrent.Store
	archiver *archive.Manager // nil unless compress-on-import is enabled
	bus      *events.Bus
	mediaDir string
	log      *slog.Logger
}

// New creates an importer. mediaDir is where directories for new shows are
// created; archiver may be nil to import files uncompressed.
func New(lib *library.Store, jobs *torrent.Store, archiver *archive.Manager, bus *events.Bus, mediaDir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		library:  lib,
		jobs:     jobs,
		archiver: archiver,
		bus:      bus,
		mediaDir: mediaDir,
		log:      logger.With("component", "importer"),
	}
}

// Result summarizes one import pass.
type Result struct {
	Imported  int
	Conflicts int
	Skipped   int
}

// Import moves the payload of a completed download into the library. Each
// video file becomes an unwatched episode; a file whose episode the user
// already watched raises a conflict and stays put. The job is marked removed
// once everything importable has landed.
func (i *Importer) Import(ctx context.Context, ev events.DownloadCompleted) (*Result, error) {
	i.log.Info("import started", "show", ev.ShowID, "path", ev.ContentPath)

	videos, err := FindVideos(ev.ContentPath)
	if err != nil {
		return nil, err
	}

	show, err := i.ensureShow(ev)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, src := range videos {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := i.importFile(show, ev, src, res); err != nil {
			return res, err
		}
	}

	// conflicts keep the job open so the leftover files stay discoverable
	if res.Conflicts == 0 {
		i.finishJob(ev.EntityID())
	}

	i.log.Info("import complete", "show", ev.ShowID,
		"imported", res.Imported, "conflicts", res.Conflicts, "skipped", res.Skipped)
	return res, nil
}

// ensureShow returns the target show, creating it from the job's metadata
// when the library has never seen it.
func (i *Importer) ensureShow(ev events.DownloadCompleted) (library.Show, error) {
	show, err := i.library.GetShow(ev.ShowID)
	if err == nil {
		return show, nil
	}
	if !errors.Is(err, library.ErrNotFound) {
		return library.Show{}, err
	}

	title := release.Parse(ev.Name).Title
	if title == "" {
		title = ev.ShowID
	}
	show = library.Show{
		ID:    ev.ShowID,
		Title: title,
		Dir:   filepath.Join(i.mediaDir, ev.ShowID),
	}
	if err := os.MkdirAll(show.Dir, 0o755); err != nil {
		return library.Show{}, fmt.Errorf("creating show dir: %w", err)
	}
	if err := i.library.UpsertShow(show); err != nil {
		return library.Show{}, err
	}
	i.log.Info("show created", "show", show.ID, "dir", show.Dir)
	return show, nil
}

func (i *Importer) importFile(show library.Show, ev events.DownloadCompleted, src string, res *Result) error {
	base := filepath.Base(src)
	info := release.Parse(base)

	season, episode := info.Season, info.Episode
	if season == 0 {
		season = ev.Season
	}
	if episode == 0 {
		episode = ev.Episode
	}
	if episode == 0 {
		i.log.Warn("no episode number inferable, skipping", "file", base)
		res.Skipped++
		return nil
	}

	if existing, err := i.library.FindEpisode(show.ID, season, episode); err == nil && existing.Watched {
		i.log.Warn("watched episode collision, leaving file in place",
			"show", show.ID, "season", season, "episode", episode, "file", src)
		if i.bus != nil {
			i.bus.Publish(events.NewImportConflict(show.ID, season, episode, existing.Path, src))
		}
		res.Conflicts++
		return nil
	}

	dst := filepath.Join(show.Dir, SanitizeFilename(base))
	if err := ValidatePath(dst, show.Dir); err != nil {
		return err
	}
	size, err := MoveFile(src, dst)
	if err != nil {
		return err
	}
	if err := i.library.UpsertEpisode(show.ID, library.Episode{
		Season: season, Number: episode, Path: dst, Size: size,
	}); err != nil {
		return err
	}

	if i.archiver != nil {
		if err := i.archiver.CompressEpisode(show.ID, season, episode); err != nil {
			i.log.Warn("compress on import failed, episode kept uncompressed",
				"show", show.ID, "episode", episode, "error", err)
		}
	}

	if i.bus != nil {
		i.bus.Publish(events.NewEpisodeImported(show.ID, season, episode, dst))
	}
	i.log.Debug("episode imported", "show", show.ID, "season", season, "episode", episode, "file", dst)
	res.Imported++
	return nil
}

// finishJob retires the ledger row. The remote torrent is left seeding; only
// the bookkeeping ends.
func (i *Importer) finishJob(hash string) {
	job, err := i.jobs.GetByHash(hash)
	if err != nil {
		i.log.Warn("completed job lookup failed", "hash", hash, "error", err)
		return
	}
	if job.Status.IsTerminal() {
		return
	}
	if err := i.jobs.Transition(job, torrent.StatusRemoved); err != nil {
		i.log.Warn("job retirement failed", "hash", hash, "error", err)
	}
}

// Sweep imports ledger jobs already sitting in Completed. It catches jobs
// whose completion event was lost to a crash or a saturated subscriber
// buffer; a normally-delivered event retires the job before the next sweep
// sees it.
func (i *Importer) Sweep(ctx context.Context) error {
	completed := torrent.StatusCompleted
	jobs, err := i.jobs.List(torrent.JobFilter{Status: &completed})
	if err != nil {
		return err
	}

	var lastErr error
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if j.ContentPath == "" {
			continue
		}
		i.log.Info("sweeping stranded job", "job_id", j.ID, "hash", j.Hash)
		ev := events.NewDownloadCompleted(j.Hash, j.Name, j.ShowID, j.Season, j.Episode, j.ContentPath)
		if _, err := i.Import(ctx, ev); err != nil {
			i.log.Error("sweep import failed", "job_id", j.ID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// Run consumes completion events until the context ends or the bus closes.
// A sweep of already-completed ledger jobs runs first.
func (i *Importer) Run(ctx context.Context) error {
	ch := i.bus.Subscribe(events.TypeDownloadCompleted, 16)
	if err := i.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		i.log.Error("startup sweep failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			dc, ok := ev.(events.DownloadCompleted)
			if !ok {
				continue
			}
			if _, err := i.Import(ctx, dc); err != nil {
				i.log.Error("import failed", "show", dc.ShowID, "error", err)
			}
		}
	}
}
