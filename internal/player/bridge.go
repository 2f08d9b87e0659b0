package player

import (
	"context"
	"log/slog"
	"time"

	"github.com/vmunix/seiri/internal/library"
)

// watchedFraction is how far into an episode counts as having watched it.
const watchedFraction = 0.9

// minSavedPosition avoids persisting resume offsets for episodes barely
// started.
const minSavedPosition = 10.0

// Channel exposes "where is playback right now" queries. Satisfied by IPC;
// tests substitute their own.
type Channel interface {
	TimePos() (float64, error)
	Duration() (float64, error)
}

// Progress is the last state observed before the channel closed.
type Progress struct {
	Position float64
	Duration float64
	Observed bool // false when the channel never answered
}

// Watched reports whether the session got far enough to count as watched.
func (p Progress) Watched() bool {
	return p.Observed && p.Duration > 0 && p.Position/p.Duration >= watchedFraction
}

// Bridge polls a progress channel while playback runs and writes the
// outcome into the library when it stops.
type Bridge struct {
	store  *library.Store
	poll   time.Duration
	logger *slog.Logger
}

// NewBridge creates a bridge persisting into store.
func NewBridge(store *library.Store, poll time.Duration, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Bridge{store: store, poll: poll, logger: logger.With("component", "player")}
}

// Watch polls ch until done closes, then persists the last known position.
// The final write happens whether the player quit cleanly or crashed; the
// position survives either way. When the channel never answered at all the
// episode is marked watched, matching a player that offers no progress
// reporting.
func (b *Bridge) Watch(ctx context.Context, ch Channel, done <-chan struct{}, showID string, season, number int) (Progress, error) {
	progress := b.observe(ctx, ch, done)

	switch {
	case progress.Watched():
		b.logger.Info("episode watched", "show", showID, "season", season, "episode", number)
		if err := b.store.MarkWatched(showID, season, number, true); err != nil {
			return progress, err
		}
	case progress.Observed && progress.Position >= minSavedPosition:
		b.logger.Info("position saved", "show", showID, "episode", number, "position", progress.Position)
		if err := b.store.SetPosition(showID, season, number, progress.Position, progress.Duration); err != nil {
			return progress, err
		}
	case !progress.Observed:
		b.logger.Warn("no progress channel, assuming watched", "show", showID, "episode", number)
		if err := b.store.MarkWatched(showID, season, number, true); err != nil {
			return progress, err
		}
	}
	return progress, nil
}

func (b *Bridge) observe(ctx context.Context, ch Channel, done <-chan struct{}) Progress {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	var progress Progress
	for {
		select {
		case <-done:
			return progress
		case <-ctx.Done():
			return progress
		case <-ticker.C:
			if pos, err := ch.TimePos(); err == nil {
				progress.Position = pos
				progress.Observed = true
			}
			if dur, err := ch.Duration(); err == nil {
				progress.Duration = dur
			}
		}
	}
}
