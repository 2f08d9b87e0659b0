package torrent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "aabbccddeeff00112233445566778899aabbccdd"

// qbitServer fakes enough of the WebUI API for the client tests.
func qbitServer(t *testing.T) (*httptest.Server, *map[string]int) {
	t.Helper()
	calls := map[string]int{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		calls["login"]++
		require.NoError(t, r.ParseForm())
		if r.Form.Get("username") != "admin" || r.Form.Get("password") != "secret" {
			w.Write([]byte("Fails."))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: "testsession"})
		w.Write([]byte("Ok."))
	})
	requireSession := func(w http.ResponseWriter, r *http.Request) bool {
		if c, err := r.Cookie("SID"); err != nil || c.Value != "testsession" {
			w.WriteHeader(http.StatusForbidden)
			return false
		}
		return true
	}
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		calls["add"]++
		if !requireSession(w, r) {
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("urls"), "magnet:?xt=urn:btih:")
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		calls["info"]++
		if !requireSession(w, r) {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"hash":"` + testHash + `","name":"ep06.mkv","state":"downloading","progress":0.42,"size":1000,"dlspeed":512,"eta":120,"save_path":"/dl","content_path":"/dl/ep06.mkv"},
			{"hash":"1111111111111111111111111111111111111111","name":"done.mkv","state":"stalledUP","progress":1,"size":2000,"dlspeed":0,"eta":8640000,"save_path":"/dl","content_path":"/dl/done.mkv"}
		]`))
	})
	mux.HandleFunc("/api/v2/torrents/pause", func(w http.ResponseWriter, r *http.Request) {
		calls["pause"]++
		if !requireSession(w, r) {
			return
		}
		w.Write([]byte(""))
	})
	mux.HandleFunc("/api/v2/torrents/delete", func(w http.ResponseWriter, r *http.Request) {
		calls["delete"]++
		if !requireSession(w, r) {
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.Form.Get("deleteFiles"))
		w.Write([]byte(""))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestQBittorrent_AddReturnsHashFromMagnet(t *testing.T) {
	srv, calls := qbitServer(t)
	c := NewQBittorrentClient(srv.URL, "admin", "secret", testLogger())

	hash, err := c.Add(context.Background(), "magnet:?xt=urn:btih:"+testHash+"&dn=ep06", "/dl")
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
	assert.Equal(t, 1, (*calls)["login"])
}

func TestQBittorrent_AddWithoutHashFails(t *testing.T) {
	srv, _ := qbitServer(t)
	c := NewQBittorrentClient(srv.URL, "admin", "secret", testLogger())

	_, err := c.Add(context.Background(), "magnet:?dn=nothing", "")
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestQBittorrent_BadCredentials(t *testing.T) {
	srv, _ := qbitServer(t)
	c := NewQBittorrentClient(srv.URL, "admin", "wrong", testLogger())

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestQBittorrent_List(t *testing.T) {
	srv, _ := qbitServer(t)
	c := NewQBittorrentClient(srv.URL, "admin", "secret", testLogger())

	torrents, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 2)

	assert.Equal(t, testHash, torrents[0].Hash)
	assert.Equal(t, RemoteDownloading, torrents[0].State)
	assert.Equal(t, 0.42, torrents[0].Progress)
	assert.Equal(t, "/dl/ep06.mkv", torrents[0].ContentPath)
	assert.Equal(t, 2*time.Minute, torrents[0].ETA)

	// seeding counts as completed, the infinity eta is dropped
	assert.Equal(t, RemoteCompleted, torrents[1].State)
	assert.Zero(t, torrents[1].ETA)
}

func TestQBittorrent_PauseAndRemove(t *testing.T) {
	srv, calls := qbitServer(t)
	c := NewQBittorrentClient(srv.URL, "admin", "secret", testLogger())

	require.NoError(t, c.Pause(context.Background(), testHash))
	require.NoError(t, c.Remove(context.Background(), testHash, true))
	assert.Equal(t, 1, (*calls)["pause"])
	assert.Equal(t, 1, (*calls)["delete"])
	// one login shared across calls
	assert.Equal(t, 1, (*calls)["login"])
}

func TestQBittorrent_DaemonDown(t *testing.T) {
	srv, _ := qbitServer(t)
	srv.Close()
	c := NewQBittorrentClient(srv.URL, "admin", "secret", testLogger())

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrDaemonUnreachable)
}

func TestMapQbitState(t *testing.T) {
	assert.Equal(t, RemoteDownloading, mapQbitState("stalledDL"))
	assert.Equal(t, RemoteQueued, mapQbitState("queuedDL"))
	assert.Equal(t, RemotePaused, mapQbitState("pausedDL"))
	assert.Equal(t, RemoteCompleted, mapQbitState("uploading"))
	assert.Equal(t, RemoteCompleted, mapQbitState("pausedUP"))
	assert.Equal(t, RemoteErrored, mapQbitState("missingFiles"))
	assert.Equal(t, RemoteUnknown, mapQbitState("somethingNew"))
}
