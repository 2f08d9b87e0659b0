// Package config handles TOML configuration loading with environment variable
// substitution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Player   PlayerConfig   `toml:"player"`
	Torrent  TorrentConfig  `toml:"torrent"`
	Tracker  TrackerConfig  `toml:"tracker"`
	Metadata MetadataConfig `toml:"metadata"`
}

// GeneralConfig covers the library, archival and logging settings.
type GeneralConfig struct {
	MediaDirs        []string `toml:"media_dirs"`
	LibraryPath      string   `toml:"library_path"`
	JobsPath         string   `toml:"jobs_path"`
	LogLevel         string   `toml:"log_level"`
	CompressEpisodes bool     `toml:"compress_episodes"`
	CompressionLevel int      `toml:"compression_level"`
	ArchivePath      string   `toml:"archive_path"`
	ArchiveMode      string   `toml:"archive_mode"` // "ghost" or "compressed"
}

// PlayerConfig selects the external video player.
type PlayerConfig struct {
	Command       string   `toml:"command"`
	Args          []string `toml:"args"`
	TrackProgress bool     `toml:"track_progress"`
}

// TorrentConfig selects and locates the torrent daemon.
type TorrentConfig struct {
	Backend           string   `toml:"backend"` // "qbittorrent" or "transmission"
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	Username          string   `toml:"username"`
	Password          string   `toml:"password"`
	ManagedDaemonCmd  string   `toml:"managed_daemon_command"`
	ManagedDaemonArgs []string `toml:"managed_daemon_args"`
	PollInterval      duration `toml:"poll_interval"`
}

// TrackerConfig controls the auto-download loop.
type TrackerConfig struct {
	TickInterval duration `toml:"tick_interval"`
	ScanInterval duration `toml:"scan_interval"`
}

// MetadataConfig holds credentials for the metadata collaborator.
type MetadataConfig struct {
	MALClientID string `toml:"mal_client_id"`
}

// duration wraps time.Duration for TOML string decoding ("30s", "2m").
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d duration) Duration() time.Duration { return time.Duration(d) }

// PollInterval returns the torrent poll interval.
func (c *Config) PollInterval() time.Duration { return c.Torrent.PollInterval.Duration() }

// TickInterval returns the tracker tick interval.
func (c *Config) TickInterval() time.Duration { return c.Tracker.TickInterval.Duration() }

// ScanInterval returns the periodic rescan interval.
func (c *Config) ScanInterval() time.Duration { return c.Tracker.ScanInterval.Duration() }

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "seiri")

	if len(c.General.MediaDirs) == 0 {
		c.General.MediaDirs = []string{filepath.Join(dataDir, "shows")}
	}
	if c.General.LibraryPath == "" {
		c.General.LibraryPath = filepath.Join(dataDir, "library.toml")
	}
	if c.General.JobsPath == "" {
		c.General.JobsPath = filepath.Join(dataDir, "jobs.db")
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.CompressionLevel == 0 {
		c.General.CompressionLevel = 3
	}
	if c.General.ArchivePath == "" {
		c.General.ArchivePath = filepath.Join(dataDir, "archives")
	}
	if c.General.ArchiveMode == "" {
		c.General.ArchiveMode = "ghost"
	}
	if c.Player.Command == "" {
		c.Player.Command = "mpv"
		c.Player.TrackProgress = true
	}
	if c.Torrent.Backend == "" {
		c.Torrent.Backend = "transmission"
	}
	if c.Torrent.Host == "" {
		c.Torrent.Host = "localhost"
	}
	if c.Torrent.Port == 0 {
		switch c.Torrent.Backend {
		case "qbittorrent":
			c.Torrent.Port = 8080
		default:
			c.Torrent.Port = 9091
		}
	}
	if c.Torrent.PollInterval == 0 {
		c.Torrent.PollInterval = duration(3 * time.Second)
	}
	if c.Tracker.TickInterval == 0 {
		c.Tracker.TickInterval = duration(15 * time.Minute)
	}
	if c.Tracker.ScanInterval == 0 {
		c.Tracker.ScanInterval = duration(time.Hour)
	}

	for i, dir := range c.General.MediaDirs {
		c.General.MediaDirs[i] = expandHome(dir)
	}
	c.General.LibraryPath = expandHome(c.General.LibraryPath)
	c.General.JobsPath = expandHome(c.General.JobsPath)
	c.General.ArchivePath = expandHome(c.General.ArchivePath)
}

// Validate rejects configurations the daemon cannot run with. These are the
// only process-fatal errors besides a corrupt library file.
func (c *Config) Validate() error {
	switch c.Torrent.Backend {
	case "qbittorrent", "transmission":
	default:
		return fmt.Errorf("unknown torrent backend %q", c.Torrent.Backend)
	}
	switch c.General.ArchiveMode {
	case "ghost", "compressed":
	default:
		return fmt.Errorf("unknown archive mode %q", c.General.ArchiveMode)
	}
	if c.General.CompressionLevel < 1 || c.General.CompressionLevel > 19 {
		return fmt.Errorf("compression level %d out of range 1-19", c.General.CompressionLevel)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}
