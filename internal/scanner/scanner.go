// Package scanner reconciles the media directories with the library store.
// One directory per show; loose video files at the top level become
// single-episode shows.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/pkg/release"
)

// Scanner walks media directories and folds what it finds into the store.
type Scanner struct {
	store  *library.Store
	logger *slog.Logger
}

// New creates a scanner.
func New(store *library.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		store:  store,
		logger: logger.With("component", "scanner"),
	}
}

// Result counts what a scan changed. A rescan over an unchanged tree
// reports zero mutations.
type Result struct {
	ShowsAdded      int
	ShowsUpdated    int
	ShowsRemoved    int
	EpisodesAdded   int
	EpisodesUpdated int
	EpisodesRemoved int
	Skipped         int
}

// Mutations is the total number of store writes the scan performed.
func (r Result) Mutations() int {
	return r.ShowsAdded + r.ShowsUpdated + r.ShowsRemoved +
		r.EpisodesAdded + r.EpisodesUpdated + r.EpisodesRemoved
}

type discovered struct {
	show     library.Show
	episodes []library.Episode
}

// Scan walks the given directories and reconciles the store with them.
// Episodes keep their watch state across path moves, ghosted and compressed
// records survive their files being absent, and unparseable names are
// logged and skipped.
func (s *Scanner) Scan(ctx context.Context, mediaDirs []string) (Result, error) {
	var res Result

	found := make(map[string]*discovered)
	for _, dir := range mediaDirs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.discoverDir(dir, found, &res); err != nil {
			return res, err
		}
	}

	existing, err := s.store.ListShows()
	if err != nil {
		return res, err
	}
	existingByID := make(map[string]library.Show, len(existing))
	for _, show := range existing {
		existingByID[show.ID] = show
	}

	for id, disc := range found {
		if err := s.reconcileShow(id, disc, existingByID, &res); err != nil {
			return res, err
		}
	}

	// shows that vanished from the scanned area
	for _, show := range existing {
		if _, ok := found[show.ID]; ok {
			continue
		}
		if !underAny(show.Dir, mediaDirs) {
			continue
		}
		if err := s.pruneShow(show, &res); err != nil {
			return res, err
		}
	}

	return res, nil
}

func (s *Scanner) discoverDir(dir string, found map[string]*discovered, res *Result) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		s.logger.Warn("media dir missing, skipping", "dir", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading media dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			s.discoverShowDir(path, entry.Name(), found, res)
			continue
		}
		if !release.IsVideoFile(entry.Name()) && !release.IsCompressed(entry.Name()) {
			continue
		}
		s.discoverLooseFile(dir, path, entry.Name(), found, res)
	}
	return nil
}

func (s *Scanner) discoverShowDir(dir, name string, found map[string]*discovered, res *Result) {
	id := release.MakeShowID(name)
	if id == "" {
		s.logger.Warn("cannot derive show id, skipping", "dir", dir)
		res.Skipped++
		return
	}
	disc := found[id]
	if disc == nil {
		disc = &discovered{show: library.Show{
			ID:    id,
			Title: release.MakeShowTitle(name),
			Dir:   dir,
		}}
		found[id] = disc
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !release.IsVideoFile(d.Name()) && !release.IsCompressed(d.Name()) {
			return nil
		}
		ep, ok := s.episodeFromFile(path, d)
		if !ok {
			res.Skipped++
			return nil
		}
		if ep.Season == 0 {
			if parent := filepath.Dir(path); parent != dir {
				ep.Season = seasonFromDir(filepath.Base(parent))
			}
		}
		disc.episodes = append(disc.episodes, ep)
		return nil
	})
	if err != nil {
		s.logger.Warn("walking show dir failed", "dir", dir, "error", err)
	}
}

func (s *Scanner) discoverLooseFile(mediaDir, path, name string, found map[string]*discovered, res *Result) {
	info := release.Parse(name)
	if info.Title == "" {
		s.logger.Warn("cannot infer show from loose file, skipping", "file", path)
		res.Skipped++
		return
	}
	id := release.MakeShowID(info.Title)
	disc := found[id]
	if disc == nil {
		disc = &discovered{show: library.Show{
			ID:    id,
			Title: info.Title,
			Dir:   mediaDir,
		}}
		found[id] = disc
	}

	fi, err := os.Stat(path)
	if err != nil {
		res.Skipped++
		return
	}
	ep := library.Episode{
		Season: info.Season,
		Number: info.Episode,
		Path:   path,
		Size:   fi.Size(),
		Status: library.ArchivalActive,
	}
	if ep.Number == 0 {
		// a lone movie-style file still gets a slot
		ep.Number = 1
	}
	if release.IsCompressed(name) {
		ep.Status = library.ArchivalCompressed
		ep.ArchivePath = path
		ep.Path = ""
	}
	disc.episodes = append(disc.episodes, ep)
}

var seasonDirPattern = regexp.MustCompile(`(?i)^(?:season[ ._-]?|s)(\d{1,3})$`)

// seasonFromDir infers a season number from a "Season 2" or "S02" style
// directory name; 0 means the name carries no season.
func seasonFromDir(name string) int {
	m := seasonDirPattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func (s *Scanner) episodeFromFile(path string, d fs.DirEntry) (library.Episode, bool) {
	info := release.Parse(d.Name())
	if info.Episode == 0 {
		s.logger.Warn("no episode number in filename, skipping", "file", path)
		return library.Episode{}, false
	}
	fi, err := d.Info()
	if err != nil {
		return library.Episode{}, false
	}
	ep := library.Episode{
		Season: info.Season,
		Number: info.Episode,
		Path:   path,
		Size:   fi.Size(),
		Status: library.ArchivalActive,
	}
	if release.IsCompressed(d.Name()) {
		ep.Status = library.ArchivalCompressed
		ep.ArchivePath = path
		ep.Path = ""
	}
	return ep, true
}

func (s *Scanner) reconcileShow(id string, disc *discovered, existingByID map[string]library.Show, res *Result) error {
	prev, known := existingByID[id]
	if !known {
		if err := s.store.UpsertShow(disc.show); err != nil {
			return err
		}
		res.ShowsAdded++
	} else if prev.Title != disc.show.Title || prev.Dir != disc.show.Dir {
		if err := s.store.UpsertShow(disc.show); err != nil {
			return err
		}
		res.ShowsUpdated++
	}

	seen := make(map[[2]int]bool, len(disc.episodes))
	for _, ep := range disc.episodes {
		seen[[2]int{ep.Season, ep.Number}] = true
		old := prev.Episode(ep.Season, ep.Number)
		if old == nil {
			if err := s.store.UpsertEpisode(id, ep); err != nil {
				return err
			}
			res.EpisodesAdded++
			continue
		}
		if old.Path != ep.Path || old.Size != ep.Size ||
			old.Status != ep.Status || old.ArchivePath != ep.ArchivePath {
			if err := s.store.UpsertEpisode(id, ep); err != nil {
				return err
			}
			res.EpisodesUpdated++
		}
	}

	for _, old := range prev.Episodes {
		if seen[[2]int{old.Season, old.Number}] {
			continue
		}
		if s.retain(old) {
			continue
		}
		if err := s.store.RemoveEpisode(id, old.Season, old.Number); err != nil {
			return err
		}
		res.EpisodesRemoved++
	}
	return nil
}

// pruneShow handles a show whose files were not seen this scan. Ghosted and
// still-archived episodes are kept; if nothing survives, the show goes too.
func (s *Scanner) pruneShow(show library.Show, res *Result) error {
	retained := 0
	for _, ep := range show.Episodes {
		if s.retain(ep) {
			retained++
			continue
		}
		if err := s.store.RemoveEpisode(show.ID, ep.Season, ep.Number); err != nil {
			return err
		}
		res.EpisodesRemoved++
	}
	if retained == 0 {
		if err := s.store.RemoveShow(show.ID); err != nil {
			return err
		}
		res.ShowsRemoved++
	}
	return nil
}

func (s *Scanner) retain(ep library.Episode) bool {
	switch ep.Status {
	case library.ArchivalGhosted:
		return true
	case library.ArchivalCompressed:
		if _, err := os.Stat(ep.ArchivePath); err == nil {
			return true
		}
	}
	return false
}

func underAny(path string, dirs []string) bool {
	if path == "" {
		return false
	}
	for _, dir := range dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
