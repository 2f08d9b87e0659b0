package torrent

// Status tracks a job through its lifecycle in the ledger.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRemoved     Status = "removed"
)

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is list of valid "to" statuses.
var validTransitions = map[Status][]Status{
	// a small torrent can complete between two polls
	StatusQueued:      {StatusDownloading, StatusPaused, StatusCompleted, StatusFailed, StatusRemoved},
	StatusDownloading: {StatusPaused, StatusCompleted, StatusFailed, StatusRemoved},
	StatusPaused:      {StatusQueued, StatusDownloading, StatusFailed, StatusRemoved},
	StatusCompleted:   {StatusRemoved},
	StatusFailed:      {StatusQueued, StatusRemoved}, // allow retry
	StatusRemoved:     {},                            // terminal
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, v := range validTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true when no transitions lead out of this status
// (except failed, which can be retried).
func (s Status) IsTerminal() bool {
	return s == StatusRemoved || s == StatusFailed
}

// statusForRemote maps a daemon state onto the ledger lifecycle.
func statusForRemote(state RemoteState) (Status, bool) {
	switch state {
	case RemoteQueued, RemoteChecking:
		return StatusQueued, true
	case RemoteDownloading:
		return StatusDownloading, true
	case RemotePaused:
		return StatusPaused, true
	case RemoteCompleted:
		return StatusCompleted, true
	case RemoteErrored:
		return StatusFailed, true
	default:
		return "", false
	}
}
