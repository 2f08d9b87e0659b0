// Package search queries the nyaa.si RSS feed for releases.
package search

import (
	"errors"
	"time"
)

// ErrUnavailable means the indexer could not be reached or returned
// something unparseable. Callers treat it as transient.
var ErrUnavailable = errors.New("search source unavailable")

// Category narrows results to a section of the index.
type Category int

const (
	CategoryAll Category = iota
	CategoryEnglish
	CategoryRaw
	CategoryNonEnglish
)

func (c Category) queryParam() string {
	switch c {
	case CategoryEnglish:
		return "1_2"
	case CategoryRaw:
		return "1_4"
	case CategoryNonEnglish:
		return "1_3"
	default:
		return "1_0"
	}
}

// String returns the display name.
func (c Category) String() string {
	switch c {
	case CategoryEnglish:
		return "English-translated"
	case CategoryRaw:
		return "Raw"
	case CategoryNonEnglish:
		return "Non-English"
	default:
		return "All"
	}
}

// Filter applies the index's server-side result filter.
type Filter int

const (
	FilterNone Filter = iota
	FilterNoRemakes
	FilterTrusted
)

func (f Filter) queryParam() string {
	switch f {
	case FilterNoRemakes:
		return "1"
	case FilterTrusted:
		return "2"
	default:
		return "0"
	}
}

// String returns the display name.
func (f Filter) String() string {
	switch f {
	case FilterNoRemakes:
		return "No Remakes"
	case FilterTrusted:
		return "Trusted Only"
	default:
		return "No Filter"
	}
}

// Result is one release from the feed.
type Result struct {
	Title       string
	Category    string
	Size        int64 // bytes
	Seeders     int
	Leechers    int
	Downloads   int
	InfoHash    string
	Magnet      string
	TorrentURL  string
	PublishedAt time.Time
	Trusted     bool
	Remake      bool
	Batch       bool // season pack rather than a single episode
}
