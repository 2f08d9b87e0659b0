// Package server wires the daemon's long-running loops together: scanning,
// torrent polling, auto-download ticks and import of completed downloads.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/vmunix/seiri/internal/archive"
	"github.com/vmunix/seiri/internal/config"
	"github.com/vmunix/seiri/internal/events"
	"github.com/vmunix/seiri/internal/importer"
	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/internal/metadata"
	"github.com/vmunix/seiri/internal/migrations"
	"github.com/vmunix/seiri/internal/scanner"
	"github.com/vmunix/seiri/internal/search"
	"github.com/vmunix/seiri/internal/torrent"
	"github.com/vmunix/seiri/internal/tracker"
)

// Runner owns every component of the daemon and supervises their loops.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger

	store   *library.Store
	db      *sql.DB
	bus     *events.Bus
	daemon  *torrent.Daemon
	manager *torrent.Manager
	scanner *scanner.Scanner
	tracker *tracker.Tracker
	imports *importer.Importer
	archive *archive.Manager
	meta    *metadata.Service // nil when no client id is configured
}

// NewRunner builds the daemon's component graph from configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.General.LibraryPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	store, err := library.Open(cfg.General.LibraryPath, logger)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.General.JobsPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening job ledger: %w", err)
	}
	if err := migrations.Apply(db); err != nil {
		store.Close()
		db.Close()
		return nil, err
	}

	bus := events.NewBus(logger)
	backend := buildBackend(cfg, logger)
	jobs := torrent.NewStore(db)

	r := &Runner{
		cfg:     cfg,
		logger:  logger.With("component", "server"),
		store:   store,
		db:      db,
		bus:     bus,
		daemon:  torrent.NewDaemon(backend, cfg.Torrent.ManagedDaemonCmd, cfg.Torrent.ManagedDaemonArgs, logger),
		manager: torrent.NewManager(backend, jobs, bus, logger),
		scanner: scanner.New(store, logger),
		archive: archive.NewManager(store,
			archive.NewCodec(cfg.General.CompressionLevel, logger),
			cfg.General.ArchivePath, archive.Mode(cfg.General.ArchiveMode), logger),
	}

	r.tracker = tracker.New(store, search.NewClient("", logger), r.manager, "", logger)

	var archiver *archive.Manager
	if cfg.General.CompressEpisodes {
		archiver = r.archive
	}
	mediaDir := ""
	if len(cfg.General.MediaDirs) > 0 {
		mediaDir = cfg.General.MediaDirs[0]
	}
	r.imports = importer.New(store, jobs, archiver, bus, mediaDir, logger)

	if cfg.Metadata.MALClientID != "" {
		r.meta = metadata.NewService(
			metadata.NewClient("", cfg.Metadata.MALClientID),
			metadata.NewCache(db), logger)
	}

	return r, nil
}

// Store exposes the library for command handlers.
func (r *Runner) Store() *library.Store { return r.store }

// Manager exposes the torrent manager for command handlers.
func (r *Runner) Manager() *torrent.Manager { return r.manager }

// Metadata returns the metadata service, nil when unconfigured.
func (r *Runner) Metadata() *metadata.Service { return r.meta }

// Close releases everything NewRunner opened.
func (r *Runner) Close() {
	r.daemon.Stop()
	r.bus.Close()
	r.store.Close()
	r.db.Close()
}

// Run starts all loops and blocks until the context ends or a component
// fails. The torrent daemon being unreachable degrades polling but does not
// stop the rest of the daemon.
func (r *Runner) Run(ctx context.Context) error {
	if removed, err := archive.CleanPartials(r.cfg.General.ArchivePath); err != nil {
		r.logger.Warn("partial archive cleanup failed", "error", err)
	} else if removed > 0 {
		r.logger.Info("stale partial archives removed", "count", removed)
	}

	if err := r.daemon.Connect(ctx); err != nil {
		r.logger.Warn("torrent daemon unreachable, polling will retry", "error", err)
	}

	if result, err := r.scanner.Scan(ctx, r.cfg.General.MediaDirs); err != nil {
		r.logger.Warn("initial scan failed", "error", err)
	} else {
		r.logger.Info("initial scan done", "mutations", result.Mutations())
	}
	r.enrich(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.manager.Run(ctx, r.cfg.PollInterval()) })
	g.Go(func() error { return r.tracker.Run(ctx, r.cfg.TickInterval()) })
	g.Go(func() error { return r.imports.Run(ctx) })
	g.Go(func() error { return r.scanLoop(ctx) })

	return g.Wait()
}

func (r *Runner) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := r.scanner.Scan(ctx, r.cfg.General.MediaDirs)
			if err != nil {
				r.logger.Warn("rescan failed", "error", err)
				continue
			}
			if n := result.Mutations(); n > 0 {
				r.logger.Info("rescan found changes", "mutations", n)
				r.enrich(ctx)
			}
		}
	}
}

// enrich fills missing posters and canonical episode counts for shows the
// scanner brought in. No-op without a configured metadata client; failures
// are logged inside the service.
func (r *Runner) enrich(ctx context.Context) {
	if r.meta == nil {
		return
	}
	shows, err := r.store.ListShows()
	if err != nil {
		r.logger.Warn("enrich listing failed", "error", err)
		return
	}
	for _, show := range shows {
		if ctx.Err() != nil {
			return
		}
		if show.PosterURL != "" && show.EpisodeCount > 0 {
			continue
		}
		r.meta.Enrich(ctx, r.store, show.ID)
	}
}

func buildBackend(cfg *config.Config, logger *slog.Logger) torrent.Backend {
	baseURL := fmt.Sprintf("http://%s:%d", cfg.Torrent.Host, cfg.Torrent.Port)
	if cfg.Torrent.Backend == "qbittorrent" {
		return torrent.NewQBittorrentClient(baseURL, cfg.Torrent.Username, cfg.Torrent.Password, logger)
	}
	return torrent.NewTransmissionClient(baseURL, cfg.Torrent.Username, cfg.Torrent.Password, logger)
}
