package events

// Event types published by the torrent poller.
const (
	TypeDownloadCompleted = "download.completed"
	TypeDownloadFailed    = "download.failed"
)

// DownloadCompleted fires when the poller sees a job reach 100%.
// ContentPath is where the daemon wrote the payload.
type DownloadCompleted struct {
	BaseEvent
	Name        string `json:"name"`
	ShowID      string `json:"show_id"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	ContentPath string `json:"content_path"`
}

// NewDownloadCompleted creates a completion event keyed by infohash.
func NewDownloadCompleted(hash, name, showID string, season, episode int, contentPath string) DownloadCompleted {
	return DownloadCompleted{
		BaseEvent:   NewBaseEvent(TypeDownloadCompleted, hash),
		Name:        name,
		ShowID:      showID,
		Season:      season,
		Episode:     episode,
		ContentPath: contentPath,
	}
}

// DownloadFailed fires when the daemon reports an errored torrent.
type DownloadFailed struct {
	BaseEvent
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// NewDownloadFailed creates a failure event keyed by infohash.
func NewDownloadFailed(hash, name, reason string) DownloadFailed {
	return DownloadFailed{
		BaseEvent: NewBaseEvent(TypeDownloadFailed, hash),
		Name:      name,
		Reason:    reason,
	}
}
