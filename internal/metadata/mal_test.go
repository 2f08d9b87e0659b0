package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/seiri/internal/library"
	"github.com/vmunix/seiri/internal/migrations"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupCache(t *testing.T) *Cache {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Apply(db))
	return NewCache(db)
}

// malServer fakes the MAL v2 API for one show.
func malServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/anime", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("X-MAL-CLIENT-ID") != "test-client" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"node": map[string]any{
					"id":    52991,
					"title": "Sousou no Frieren",
					"main_picture": map[string]any{
						"medium": "https://img.example/m.jpg",
						"large":  "https://img.example/l.jpg",
					},
					"mean":         9.3,
					"status":       "finished_airing",
					"num_episodes": 28,
					"genres":       []map[string]any{{"name": "Adventure"}, {"name": "Fantasy"}},
				}},
				{"node": map[string]any{"id": 1, "title": "Something Else"}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_Search(t *testing.T) {
	srv, _ := malServer(t)
	client := NewClient(srv.URL, "test-client")

	results, err := client.Search(context.Background(), "frieren")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, int64(52991), results[0].ID)
	assert.Equal(t, "Sousou no Frieren", results[0].Title)
	assert.Equal(t, "https://img.example/l.jpg", results[0].CoverURL, "large picture preferred")
	assert.Equal(t, 28, results[0].Episodes)
	assert.Equal(t, []string{"Adventure", "Fantasy"}, results[0].Genres)
}

func TestClient_BadClientID(t *testing.T) {
	srv, _ := malServer(t)
	client := NewClient(srv.URL, "wrong")

	_, err := client.Search(context.Background(), "frieren")
	assert.Error(t, err)
}

func TestService_LookupCaches(t *testing.T) {
	srv, calls := malServer(t)
	svc := NewService(NewClient(srv.URL, "test-client"), setupCache(t), testLogger())

	first, err := svc.Lookup(context.Background(), "Sousou no Frieren")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(52991), first.ID)

	second, err := svc.Lookup(context.Background(), "Sousou no Frieren")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, *calls, "second lookup served from cache")
}

func TestService_Enrich(t *testing.T) {
	srv, _ := malServer(t)
	svc := NewService(NewClient(srv.URL, "test-client"), nil, testLogger())

	store, err := library.Open(filepath.Join(t.TempDir(), "library.toml"), testLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.UpsertShow(library.Show{ID: "frieren", Title: "Sousou no Frieren"}))

	svc.Enrich(context.Background(), store, "frieren")

	show, err := store.GetShow("frieren")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/l.jpg", show.PosterURL)
	assert.Equal(t, 28, show.EpisodeCount)
}

func TestService_EnrichSurvivesAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	svc := NewService(NewClient(srv.URL, "test-client"), nil, testLogger())

	store, err := library.Open(filepath.Join(t.TempDir(), "library.toml"), testLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.UpsertShow(library.Show{ID: "frieren", Title: "Frieren"}))

	svc.Enrich(context.Background(), store, "frieren")

	show, err := store.GetShow("frieren")
	require.NoError(t, err)
	assert.Empty(t, show.PosterURL, "failure leaves the show untouched")
}

func TestCache_RoundTripAndExpiry(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Hour))
	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, cache.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, ok = cache.Get(ctx, "short")
	assert.False(t, ok)

	pruned, err := cache.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestCache_Overwrite(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("first"), time.Hour))
	require.NoError(t, cache.Set(ctx, "k", []byte("second"), time.Hour))

	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)
}
