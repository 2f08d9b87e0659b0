// Package tracker turns tracked series into torrent submissions. Each tick
// it searches the index for every tracked series, infers episode numbers
// from result titles, and submits the best candidate for each episode the
// library does not have yet.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/internal/search"
	"github.com/vmunix/seiri/internal/torrent"
	"github.com/vmunix/seiri/pkg/release"
)

// Searcher is the slice of the search client the tracker needs.
type Searcher interface {
	Search(ctx context.Context, query string, category search.Category, filter search.Filter) ([]search.Result, error)
}

// Submitter is the slice of the torrent manager the tracker needs: sending
// magnets and the dedup check against the job ledger.
type Submitter interface {
	Add(ctx context.Context, req torrent.AddRequest) (*torrent.Job, error)
	HasActive(showID string, season, episode int) (bool, error)
}

// Tracker runs the auto-download loop.
type Tracker struct {
	store    *library.Store
	searcher Searcher
	torrents Submitter
	category search.Category
	filter   search.Filter
	savePath string
	logger   *slog.Logger
}

// New creates a tracker. savePath is passed to the daemon for every
// submission; empty means the daemon's default.
func New(store *library.Store, searcher Searcher, torrents Submitter, savePath string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:    store,
		searcher: searcher,
		torrents: torrents,
		category: search.CategoryEnglish,
		filter:   search.FilterNone,
		savePath: savePath,
		logger:   logger.With("component", "tracker"),
	}
}

// Tick processes every tracked series once. A failure in one series never
// stops the others; the last error is returned for visibility.
func (t *Tracker) Tick(ctx context.Context) error {
	tracked, err := t.store.ListTracked()
	if err != nil {
		return err
	}

	var lastErr error
	for _, ts := range tracked {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.trackSeries(ctx, ts); err != nil {
			t.logger.Error("series tick failed", "show", ts.ShowID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// candidate is one search result with its inferred episode identity.
type candidate struct {
	result  search.Result
	season  int // inferred from the title, falling back to the season filter
	episode int
	index   int // position in the index's result order
}

func (t *Tracker) trackSeries(ctx context.Context, ts library.TrackedSeries) error {
	query := ts.Title
	if ts.SeasonFilter > 0 {
		query = fmt.Sprintf("%s S%02d", ts.Title, ts.SeasonFilter)
	}

	results, err := t.searcher.Search(ctx, query, t.category, t.filter)
	if err != nil {
		return fmt.Errorf("searching %q: %w", query, err)
	}

	show, err := t.store.GetShow(ts.ShowID)
	if err != nil && !errors.Is(err, library.ErrNotFound) {
		return err
	}

	best := t.selectCandidates(ts, show, results)
	if len(best) == 0 {
		t.logger.Debug("nothing new", "show", ts.ShowID, "last_episode", ts.LastEpisode)
		return nil
	}

	// ascending, so a mid-run failure leaves no gap behind the high-water mark
	episodes := make([]int, 0, len(best))
	for ep := range best {
		episodes = append(episodes, ep)
	}
	sort.Ints(episodes)

	for _, ep := range episodes {
		if err := t.submit(ctx, ts, ep, best[ep]); err != nil {
			return err
		}
	}
	return nil
}

// selectCandidates filters results down to eligible episodes and picks the
// winner per episode number.
func (t *Tracker) selectCandidates(ts library.TrackedSeries, show library.Show, results []search.Result) map[int]candidate {
	filter := ts.SeasonFilter

	best := make(map[int]candidate)
	for i, r := range results {
		if r.Batch || r.Magnet == "" {
			continue
		}
		info := release.Parse(r.Title)
		if info.Episode == 0 {
			continue
		}
		if info.Episode <= ts.LastEpisode {
			continue
		}
		if !release.TitlesRelated(ts.Title, info.Title) {
			continue
		}
		if filter > 0 && info.Season > 0 && info.Season != filter {
			continue
		}
		if ts.Group != "" && !strings.EqualFold(ts.Group, info.Group) {
			continue
		}
		if ts.Quality != "" && !strings.EqualFold(ts.Quality, info.Quality) {
			continue
		}
		season := info.Season
		if season == 0 {
			season = filter
		}
		if ownedEpisode(show, season, info.Episode) {
			// library already has it, ghosted or not
			continue
		}

		c := candidate{result: r, season: season, episode: info.Episode, index: i}
		if cur, ok := best[info.Episode]; !ok || betterCandidate(c, cur) {
			best[info.Episode] = c
		}
	}
	return best
}

// ownedEpisode reports whether the library already holds the episode. A
// season 0 on either side means the season is unknown there, so only the
// episode number decides.
func ownedEpisode(show library.Show, season, episode int) bool {
	for _, ep := range show.Episodes {
		if ep.Number != episode {
			continue
		}
		if season == 0 || ep.Season == 0 || ep.Season == season {
			return true
		}
	}
	return false
}

// betterCandidate is the deterministic tie-break: trusted first, then
// seeders, then size, then the index's own ordering.
func betterCandidate(a, b candidate) bool {
	if a.result.Trusted != b.result.Trusted {
		return a.result.Trusted
	}
	if a.result.Seeders != b.result.Seeders {
		return a.result.Seeders > b.result.Seeders
	}
	if a.result.Size != b.result.Size {
		return a.result.Size > b.result.Size
	}
	return a.index < b.index
}

func (t *Tracker) submit(ctx context.Context, ts library.TrackedSeries, episode int, c candidate) error {
	// the eligibility pass may be stale by now; re-check right before
	// creating the job
	active, err := t.torrents.HasActive(ts.ShowID, c.season, episode)
	if err != nil {
		return err
	}
	if active {
		t.logger.Debug("job already in flight", "show", ts.ShowID, "episode", episode)
		return nil
	}

	prev, err := t.store.AdvanceLastEpisode(ts.ShowID, episode)
	if err != nil {
		return err
	}

	_, err = t.torrents.Add(ctx, torrent.AddRequest{
		Magnet:   c.result.Magnet,
		Name:     c.result.Title,
		ShowID:   ts.ShowID,
		Season:   c.season,
		Episode:  episode,
		SavePath: t.savePath,
	})
	if err != nil {
		// undo the optimistic advance, next tick retries
		if rbErr := t.store.SetLastEpisode(ts.ShowID, prev); rbErr != nil {
			t.logger.Error("rollback failed", "show", ts.ShowID, "error", rbErr)
		}
		return fmt.Errorf("submitting episode %d of %s: %w", episode, ts.ShowID, err)
	}

	t.logger.Info("episode submitted", "show", ts.ShowID, "episode", episode,
		"release", c.result.Title, "seeders", c.result.Seeders)
	return nil
}

// Run ticks on the given interval until the context ends.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Tick(ctx); err != nil {
				t.logger.Debug("tick finished with errors", "error", err)
			}
		}
	}
}
