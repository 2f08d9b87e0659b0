package library

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Store owns the library state. A single goroutine applies all requests in
// arrival order and persists after every successful mutation, so callers on
// any goroutine see a consistent, durable catalog.
type Store struct {
	path   string
	logger *slog.Logger

	reqs chan request
	done chan struct{}
	once sync.Once
}

type request struct {
	fn     func(*state) error
	mutate bool
	reply  chan error
}

// Open loads the library file and starts the store. A parse failure returns
// an error satisfying errors.Is(err, ErrCorruptState); callers decide whether
// to Recover and retry.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:   path,
		logger: logger.With("component", "library"),
		reqs:   make(chan request),
		done:   make(chan struct{}),
	}
	go s.run(st)
	return s, nil
}

func (s *Store) run(st *state) {
	for {
		select {
		case req := <-s.reqs:
			err := req.fn(st)
			if err == nil && req.mutate {
				if err = saveFile(s.path, st); err != nil {
					s.logger.Error("persisting library failed", "error", err)
				}
			}
			req.reply <- err
		case <-s.done:
			// refuse anything still queued so callers unblock
			for {
				select {
				case req := <-s.reqs:
					req.reply <- ErrClosed
				default:
					return
				}
			}
		}
	}
}

// Close stops the actor. Pending requests fail with ErrClosed.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) do(mutate bool, fn func(*state) error) error {
	req := request{fn: fn, mutate: mutate, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
		return <-req.reply
	case <-s.done:
		return ErrClosed
	}
}

// UpsertShow creates the show or updates its metadata. Existing episodes are
// untouched.
func (s *Store) UpsertShow(show Show) error {
	return s.do(true, func(st *state) error {
		if existing, ok := st.shows[show.ID]; ok {
			existing.Title = show.Title
			if show.Dir != "" {
				existing.Dir = show.Dir
			}
			if show.EpisodeCount != 0 {
				existing.EpisodeCount = show.EpisodeCount
			}
			if show.PosterURL != "" {
				existing.PosterURL = show.PosterURL
			}
			return nil
		}
		copied := show
		copied.sortEpisodes()
		st.shows[show.ID] = &copied
		return nil
	})
}

// RemoveShow deletes the show and any tracking entry for it.
func (s *Store) RemoveShow(id string) error {
	return s.do(true, func(st *state) error {
		if _, ok := st.shows[id]; !ok {
			return fmt.Errorf("show %q: %w", id, ErrNotFound)
		}
		delete(st.shows, id)
		delete(st.tracked, id)
		return nil
	})
}

// GetShow returns a copy of the show.
func (s *Store) GetShow(id string) (Show, error) {
	var out Show
	err := s.do(false, func(st *state) error {
		show, ok := st.shows[id]
		if !ok {
			return fmt.Errorf("show %q: %w", id, ErrNotFound)
		}
		out = copyShow(show)
		return nil
	})
	return out, err
}

// ListShows returns copies of all shows sorted by title.
func (s *Store) ListShows() ([]Show, error) {
	var out []Show
	err := s.do(false, func(st *state) error {
		for _, show := range st.shows {
			out = append(out, copyShow(show))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
		return nil
	})
	return out, err
}

// UpsertEpisode adds the episode to the show or refreshes its file fields.
// Watch state of an existing record is preserved; path moves must not lose
// progress.
func (s *Store) UpsertEpisode(showID string, ep Episode) error {
	return s.do(true, func(st *state) error {
		show, ok := st.shows[showID]
		if !ok {
			return fmt.Errorf("show %q: %w", showID, ErrNotFound)
		}
		if ep.Status == "" {
			ep.Status = ArchivalActive
		}
		if existing := show.Episode(ep.Season, ep.Number); existing != nil {
			existing.Path = ep.Path
			existing.ArchivePath = ep.ArchivePath
			existing.Size = ep.Size
			existing.Status = ep.Status
			return nil
		}
		show.Episodes = append(show.Episodes, ep)
		show.sortEpisodes()
		return nil
	})
}

// RemoveEpisode deletes the episode record.
func (s *Store) RemoveEpisode(showID string, season, number int) error {
	return s.do(true, func(st *state) error {
		show, ok := st.shows[showID]
		if !ok {
			return fmt.Errorf("show %q: %w", showID, ErrNotFound)
		}
		for i := range show.Episodes {
			if show.Episodes[i].Season == season && show.Episodes[i].Number == number {
				show.Episodes = append(show.Episodes[:i], show.Episodes[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("episode s%de%d of %q: %w", season, number, showID, ErrNotFound)
	})
}

// FindEpisode returns a copy of the episode.
func (s *Store) FindEpisode(showID string, season, number int) (Episode, error) {
	var out Episode
	err := s.do(false, func(st *state) error {
		show, ok := st.shows[showID]
		if !ok {
			return fmt.Errorf("show %q: %w", showID, ErrNotFound)
		}
		ep := show.Episode(season, number)
		if ep == nil {
			return fmt.Errorf("episode s%de%d of %q: %w", season, number, showID, ErrNotFound)
		}
		out = *ep
		return nil
	})
	return out, err
}

// MarkWatched sets or clears the watched flag. Marking watched resets the
// playback position.
func (s *Store) MarkWatched(showID string, season, number int, watched bool) error {
	return s.withEpisode(showID, season, number, func(ep *Episode) {
		ep.Watched = watched
		if watched {
			ep.Position = 0
		}
	})
}

// SetPosition records playback progress in seconds.
func (s *Store) SetPosition(showID string, season, number int, position, duration float64) error {
	return s.withEpisode(showID, season, number, func(ep *Episode) {
		ep.Position = position
		if duration > 0 {
			ep.Duration = duration
		}
	})
}

// SetArchival updates the episode's archival status and archive path. An
// episode holds a source path or an archive path, never both: moving back to
// active clears the archive path, ghosting or compressing clears the source
// path.
func (s *Store) SetArchival(showID string, season, number int, status ArchivalStatus, archivePath string) error {
	return s.withEpisode(showID, season, number, func(ep *Episode) {
		ep.Status = status
		ep.ArchivePath = archivePath
		switch status {
		case ArchivalActive:
			ep.ArchivePath = ""
		case ArchivalGhosted, ArchivalCompressed:
			ep.Path = ""
		}
	})
}

func (s *Store) withEpisode(showID string, season, number int, apply func(*Episode)) error {
	return s.do(true, func(st *state) error {
		show, ok := st.shows[showID]
		if !ok {
			return fmt.Errorf("show %q: %w", showID, ErrNotFound)
		}
		ep := show.Episode(season, number)
		if ep == nil {
			return fmt.Errorf("episode s%de%d of %q: %w", season, number, showID, ErrNotFound)
		}
		apply(ep)
		return nil
	})
}

// Track adds or replaces the tracking entry for a show.
func (s *Store) Track(ts TrackedSeries) error {
	return s.do(true, func(st *state) error {
		if _, ok := st.shows[ts.ShowID]; !ok {
			return fmt.Errorf("show %q: %w", ts.ShowID, ErrNotFound)
		}
		copied := ts
		st.tracked[ts.ShowID] = &copied
		return nil
	})
}

// Untrack removes the tracking entry.
func (s *Store) Untrack(showID string) error {
	return s.do(true, func(st *state) error {
		if _, ok := st.tracked[showID]; !ok {
			return fmt.Errorf("tracked series %q: %w", showID, ErrNotFound)
		}
		delete(st.tracked, showID)
		return nil
	})
}

// GetTracked returns a copy of the tracking entry.
func (s *Store) GetTracked(showID string) (TrackedSeries, error) {
	var out TrackedSeries
	err := s.do(false, func(st *state) error {
		ts, ok := st.tracked[showID]
		if !ok {
			return fmt.Errorf("tracked series %q: %w", showID, ErrNotFound)
		}
		out = *ts
		return nil
	})
	return out, err
}

// ListTracked returns copies of all tracking entries sorted by show ID.
func (s *Store) ListTracked() ([]TrackedSeries, error) {
	var out []TrackedSeries
	err := s.do(false, func(st *state) error {
		for _, id := range sortedKeys(st.tracked) {
			out = append(out, *st.tracked[id])
		}
		return nil
	})
	return out, err
}

// AdvanceLastEpisode raises LastEpisode to the given value and returns the
// previous one. Values at or below the current high-water mark are a no-op,
// so duplicate submissions cannot move it backwards.
func (s *Store) AdvanceLastEpisode(showID string, episode int) (int, error) {
	var prev int
	err := s.do(true, func(st *state) error {
		ts, ok := st.tracked[showID]
		if !ok {
			return fmt.Errorf("tracked series %q: %w", showID, ErrNotFound)
		}
		prev = ts.LastEpisode
		if episode > ts.LastEpisode {
			ts.LastEpisode = episode
		}
		return nil
	})
	return prev, err
}

// SetLastEpisode sets LastEpisode unconditionally. Used to roll back an
// optimistic advance after a failed submission, and by explicit user edits.
func (s *Store) SetLastEpisode(showID string, episode int) error {
	return s.do(true, func(st *state) error {
		ts, ok := st.tracked[showID]
		if !ok {
			return fmt.Errorf("tracked series %q: %w", showID, ErrNotFound)
		}
		ts.LastEpisode = episode
		return nil
	})
}

func copyShow(show *Show) Show {
	out := *show
	out.Episodes = make([]Episode, len(show.Episodes))
	copy(out.Episodes, show.Episodes)
	return out
}
