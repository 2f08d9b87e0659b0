// Package torrent talks to an external torrent daemon and keeps a persistent
// ledger of submitted jobs. The daemon owns transfer state; the ledger owns
// which episode each torrent is for and where it is in its lifecycle.
package torrent

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// RemoteState is the daemon's view of a torrent, normalized across backends.
type RemoteState int

const (
	RemoteUnknown RemoteState = iota
	RemoteQueued
	RemoteChecking
	RemoteDownloading
	RemotePaused
	RemoteCompleted // done downloading, possibly seeding
	RemoteErrored
)

// String returns the lowercase state name.
func (s RemoteState) String() string {
	switch s {
	case RemoteQueued:
		return "queued"
	case RemoteChecking:
		return "checking"
	case RemoteDownloading:
		return "downloading"
	case RemotePaused:
		return "paused"
	case RemoteCompleted:
		return "completed"
	case RemoteErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// RemoteTorrent is one entry from the daemon's transfer list.
type RemoteTorrent struct {
	Hash         string
	Name         string
	State        RemoteState
	Progress     float64 // 0-1
	Size         int64
	DownloadRate int64 // bytes/sec
	ETA          time.Duration
	SavePath     string
	ContentPath  string // payload root: file or directory
	Error        string
}

// Backend abstracts the daemon's control API. Implementations exist for
// qBittorrent's WebUI and Transmission's RPC.
type Backend interface {
	// Add submits a magnet link and returns the torrent's infohash.
	Add(ctx context.Context, magnet, savePath string) (string, error)
	// List returns every torrent the daemon knows about.
	List(ctx context.Context) ([]RemoteTorrent, error)
	// Pause stops a transfer, keeping its data.
	Pause(ctx context.Context, hash string) error
	// Resume restarts a paused transfer.
	Resume(ctx context.Context, hash string) error
	// Remove drops the torrent, optionally deleting downloaded files.
	Remove(ctx context.Context, hash string, deleteFiles bool) error
}

var magnetHashRegex = regexp.MustCompile(`(?i)xt=urn:btih:([0-9a-f]{40}|[0-9a-z]{32})`)

// InfoHashFromMagnet extracts the lowercased infohash from a magnet link.
// Returns "" when the link carries none.
func InfoHashFromMagnet(magnet string) string {
	m := magnetHashRegex.FindStringSubmatch(magnet)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
