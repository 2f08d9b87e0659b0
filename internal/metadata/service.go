package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/pkg/release"
)

const lookupTTL = 7 * 24 * time.Hour

// Service provides cached show lookups and library enrichment.
type Service struct {
	client *Client
	cache  *Cache // nil disables caching
	log    *slog.Logger
}

// NewService creates a metadata service.
func NewService(client *Client, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, cache: cache, log: logger.With("component", "metadata")}
}

// Lookup finds the best MAL entry for a show title. Returns nil without an
// error when nothing matches; errors mean the API itself failed.
func (s *Service) Lookup(ctx context.Context, title string) (*Anime, error) {
	key := "mal:lookup:" + release.CleanTitle(title)
	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			var a Anime
			if err := json.Unmarshal(data, &a); err == nil {
				return &a, nil
			}
		}
	}

	results, err := s.client.Search(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", title, err)
	}
	best := pickBest(title, results)
	if best == nil {
		return nil, nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(best); err == nil {
			if err := s.cache.Set(ctx, key, data, lookupTTL); err != nil {
				s.log.Warn("lookup cache write failed", "title", title, "error", err)
			}
		}
	}
	return best, nil
}

// Enrich fills a show's poster and canonical episode count from MAL. Best
// effort: any failure leaves the show as it was.
func (s *Service) Enrich(ctx context.Context, store *library.Store, showID string) {
	show, err := store.GetShow(showID)
	if err != nil {
		s.log.Warn("enrich skipped, show missing", "show", showID, "error", err)
		return
	}

	anime, err := s.Lookup(ctx, show.Title)
	if err != nil {
		s.log.Warn("metadata lookup failed", "show", showID, "error", err)
		return
	}
	if anime == nil {
		s.log.Debug("no metadata match", "show", showID, "title", show.Title)
		return
	}

	show.PosterURL = anime.CoverURL
	if anime.Episodes > 0 {
		show.EpisodeCount = anime.Episodes
	}
	if err := store.UpsertShow(show); err != nil {
		s.log.Warn("enrich write failed", "show", showID, "error", err)
		return
	}
	s.log.Info("show enriched", "show", showID, "mal_id", anime.ID, "episodes", anime.Episodes)
}

// pickBest fuzzy-matches the query against result titles.
func pickBest(query string, results []Anime) *Anime {
	if len(results) == 0 {
		return nil
	}
	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	match := release.MatchTitle(query, titles)
	if match.Confidence == release.ConfidenceNone {
		// MAL's own ranking is decent; trust its first result
		return &results[0]
	}
	for i, r := range results {
		if r.Title == match.Title {
			return &results[i]
		}
	}
	return &results[0]
}
