// Package library holds the on-disk media catalog: shows, their episodes,
// watch progress, archival state, and the set of tracked series. All access
// goes through Store, which serializes mutations and persists after each one.
package library

import (
	"sort"
	"time"
)

// ArchivalStatus describes what exists on disk for an episode.
type ArchivalStatus string

const (
	// ArchivalActive means the playable file is present at Path.
	ArchivalActive ArchivalStatus = "active"
	// ArchivalGhosted means the file was deleted but the record kept.
	ArchivalGhosted ArchivalStatus = "ghosted"
	// ArchivalCompressed means only the zstd archive at ArchivePath exists.
	ArchivalCompressed ArchivalStatus = "compressed"
)

// Episode is one entry of a show. Season 0 means the files carry no season
// marker.
type Episode struct {
	Season      int            `toml:"season,omitempty"`
	Number      int            `toml:"number"`
	Path        string         `toml:"path,omitempty"`
	ArchivePath string         `toml:"archive_path,omitempty"`
	Size        int64          `toml:"size,omitempty"`
	Watched     bool           `toml:"watched,omitempty"`
	Position    float64        `toml:"position,omitempty"` // seconds
	Duration    float64        `toml:"duration,omitempty"` // seconds
	Status      ArchivalStatus `toml:"status,omitempty"`
}

// Show groups episodes under a stable ID derived from the directory name.
type Show struct {
	ID           string    `toml:"id"`
	Title        string    `toml:"title"`
	Dir          string    `toml:"dir,omitempty"`
	EpisodeCount int       `toml:"episode_count,omitempty"` // canonical count from metadata
	PosterURL    string    `toml:"poster_url,omitempty"`
	Episodes     []Episode `toml:"episodes,omitempty"`
}

// Episode returns the episode with the given season and number, or nil.
func (s *Show) Episode(season, number int) *Episode {
	for i := range s.Episodes {
		if s.Episodes[i].Season == season && s.Episodes[i].Number == number {
			return &s.Episodes[i]
		}
	}
	return nil
}

// NextUnwatched returns the first unwatched episode in (season, number)
// order, or nil when everything is watched.
func (s *Show) NextUnwatched() *Episode {
	for i := range s.Episodes {
		if !s.Episodes[i].Watched {
			return &s.Episodes[i]
		}
	}
	return nil
}

func (s *Show) sortEpisodes() {
	sort.Slice(s.Episodes, func(i, j int) bool {
		if s.Episodes[i].Season != s.Episodes[j].Season {
			return s.Episodes[i].Season < s.Episodes[j].Season
		}
		return s.Episodes[i].Number < s.Episodes[j].Number
	})
}

// TrackedSeries marks a show for automatic downloading of new episodes.
type TrackedSeries struct {
	ShowID       string    `toml:"show_id"`
	Title        string    `toml:"title"` // search term sent to the indexer
	LastEpisode  int       `toml:"last_episode"`
	SeasonFilter int       `toml:"season_filter,omitempty"` // 0 = any season
	Group        string    `toml:"group,omitempty"`         // release group filter
	Quality      string    `toml:"quality,omitempty"`       // e.g. "1080p"
	AddedAt      time.Time `toml:"added_at"`
}
