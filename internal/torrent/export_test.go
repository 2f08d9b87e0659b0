package torrent

import "time"

// SetRetryDelayForTest shortens the connect backoff so daemon tests run fast.
func SetRetryDelayForTest(d *Daemon, delay time.Duration) {
	d.retryDelay = delay
}
