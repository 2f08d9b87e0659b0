package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vmunix/seiri/internal/library"
)

// Mode selects what archiving a show does to its files.
type Mode string

const (
	// ModeGhost deletes the file and keeps the library record.
	ModeGhost Mode = "ghost"
	// ModeCompressed replaces the file with a zstd archive.
	ModeCompressed Mode = "compressed"
)

// Manager applies archival decisions to the library.
type Manager struct {
	store      *library.Store
	codec      *Codec
	archiveDir string
	mode       Mode
	logger     *slog.Logger
}

// NewManager creates an archive manager. archiveDir is where compressed
// episodes are stored, one subdirectory per show.
func NewManager(store *library.Store, codec *Codec, archiveDir string, mode Mode, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      store,
		codec:      codec,
		archiveDir: archiveDir,
		mode:       mode,
		logger:     logger.With("component", "archive"),
	}
}

// ArchiveShow archives every active episode of a show using the configured
// mode. The context is honored between episodes; an episode mid compress-
// verify-delete always finishes.
func (m *Manager) ArchiveShow(ctx context.Context, showID string) error {
	show, err := m.store.GetShow(showID)
	if err != nil {
		return err
	}
	for _, ep := range show.Episodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ep.Status != library.ArchivalActive || ep.Path == "" {
			continue
		}
		if err := m.ArchiveEpisode(showID, ep.Season, ep.Number); err != nil {
			return fmt.Errorf("episode %d: %w", ep.Number, err)
		}
	}
	return nil
}

// ArchiveEpisode archives one episode using the configured mode.
func (m *Manager) ArchiveEpisode(showID string, season, number int) error {
	switch m.mode {
	case ModeCompressed:
		return m.CompressEpisode(showID, season, number)
	default:
		return m.GhostEpisode(showID, season, number)
	}
}

// GhostEpisode deletes the episode file and marks the record ghosted.
// Watch state survives; the bytes do not.
func (m *Manager) GhostEpisode(showID string, season, number int) error {
	ep, err := m.store.FindEpisode(showID, season, number)
	if err != nil {
		return err
	}
	if ep.Status == library.ArchivalGhosted {
		return nil
	}
	if ep.Path != "" {
		if err := os.Remove(ep.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", ep.Path, err)
		}
	}
	if ep.ArchivePath != "" {
		if err := os.Remove(ep.ArchivePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", ep.ArchivePath, err)
		}
	}
	m.logger.Info("ghosted", "show", showID, "season", season, "episode", number)
	return m.store.SetArchival(showID, season, number, library.ArchivalGhosted, "")
}

// CompressEpisode replaces the episode file with a verified zstd archive
// under the archive directory.
func (m *Manager) CompressEpisode(showID string, season, number int) error {
	ep, err := m.store.FindEpisode(showID, season, number)
	if err != nil {
		return err
	}
	if ep.Status == library.ArchivalCompressed {
		return nil
	}
	if ep.Path == "" {
		return fmt.Errorf("episode s%de%d of %q has no file", season, number, showID)
	}

	dst := filepath.Join(m.archiveDir, showID, ArchiveName(filepath.Base(ep.Path)))
	archivePath, err := m.codec.Compress(ep.Path, dst)
	if err != nil {
		return err
	}
	return m.store.SetArchival(showID, season, number, library.ArchivalCompressed, archivePath)
}

// RestoreEpisode decompresses an archived episode back to its original
// path and reactivates the record. The archive is deleted afterwards.
func (m *Manager) RestoreEpisode(showID string, season, number int) error {
	ep, err := m.store.FindEpisode(showID, season, number)
	if err != nil {
		return err
	}
	if ep.Status != library.ArchivalCompressed {
		return fmt.Errorf("episode s%de%d of %q is not compressed", season, number, showID)
	}

	dst := ep.Path
	if dst == "" {
		show, err := m.store.GetShow(showID)
		if err != nil {
			return err
		}
		dst = filepath.Join(show.Dir, filepath.Base(SourceName(ep.ArchivePath)))
	}

	restored, err := m.codec.DecompressTo(ep.ArchivePath, dst)
	if err != nil {
		return err
	}
	if err := m.store.UpsertEpisode(showID, library.Episode{
		Season: season, Number: number, Path: restored, Size: fileSize(restored),
	}); err != nil {
		return err
	}
	if err := m.store.SetArchival(showID, season, number, library.ArchivalActive, ""); err != nil {
		return err
	}
	if err := os.Remove(ep.ArchivePath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("archive removal failed after restore", "file", ep.ArchivePath, "error", err)
	}
	m.logger.Info("restored", "show", showID, "season", season, "episode", number)
	return nil
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
