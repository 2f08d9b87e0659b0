package torrent

import "errors"

// Sentinel errors for the torrent package.
var (
	// ErrDaemonUnreachable is returned when the daemon cannot be reached,
	// including after the managed-launch retry budget is spent.
	ErrDaemonUnreachable = errors.New("torrent daemon unreachable")

	// ErrSubmissionFailed is returned when the daemon rejects a torrent.
	ErrSubmissionFailed = errors.New("torrent submission failed")

	// ErrAuthFailed is returned when the daemon rejects our credentials.
	ErrAuthFailed = errors.New("torrent daemon authentication failed")

	// ErrNotFound is returned when a job is not in the ledger.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned for a state change the job
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid job transition")
)
