// Command seiri manages a local media library: scanning, searching, torrent
// jobs, archival and playback.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/vmunix/seiri/internal/config"
	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/internal/migrations"
	"github.com/vmunix/seiri/internal/torrent"
)

var version = "dev"

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "seiri",
	Short: "Local media library manager",
	Long: `seiri - local media library manager

Scans media directories into a library, tracks series for automatic
download, talks to a torrent daemon, archives watched episodes and
resumes playback where you left off.

Run 'seirid' to start the background daemon.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ~/.config/seiri/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("seiri {{.Version}}\n")
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "seiri", "config.toml")
}

func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no config at %s, run 'seiri init' first", path)
		}
		return nil, err
	}
	return cfg, nil
}

func cliLogger() *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openLibrary(cfg *config.Config) (*library.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.General.LibraryPath), 0o755); err != nil {
		return nil, err
	}
	return library.Open(cfg.General.LibraryPath, cliLogger())
}

func openLedger(cfg *config.Config) (*sql.DB, *torrent.Store, error) {
	db, err := sql.Open("sqlite", cfg.General.JobsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening job ledger: %w", err)
	}
	if err := migrations.Apply(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, torrent.NewStore(db), nil
}

func newBackend(cfg *config.Config) torrent.Backend {
	baseURL := fmt.Sprintf("http://%s:%d", cfg.Torrent.Host, cfg.Torrent.Port)
	if cfg.Torrent.Backend == "qbittorrent" {
		return torrent.NewQBittorrentClient(baseURL, cfg.Torrent.Username, cfg.Torrent.Password, cliLogger())
	}
	return torrent.NewTransmissionClient(baseURL, cfg.Torrent.Username, cfg.Torrent.Password, cliLogger())
}
