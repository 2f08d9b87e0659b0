package torrent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trSessionID = "test-session-id"

// transmissionServer fakes the RPC endpoint including the 409 session
// handshake.
func transmissionServer(t *testing.T, handle func(method string, args map[string]any) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transmission/rpc", r.URL.Path)
		if r.Header.Get("X-Transmission-Session-Id") != trSessionID {
			w.Header().Set("X-Transmission-Session-Id", trSessionID)
			w.WriteHeader(http.StatusConflict)
			return
		}
		var req struct {
			Method    string         `json:"method"`
			Arguments map[string]any `json:"arguments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{"result": "success"}
		if args := handle(req.Method, req.Arguments); args != nil {
			resp["arguments"] = args
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTransmission_SessionHandshake(t *testing.T) {
	var methods []string
	srv := transmissionServer(t, func(method string, args map[string]any) any {
		methods = append(methods, method)
		return map[string]any{"torrents": []any{}}
	})
	c := NewTransmissionClient(srv.URL, "", "", testLogger())

	_, err := c.List(context.Background())
	require.NoError(t, err)
	// first request got the 409, retry carried the session id
	assert.Equal(t, []string{"torrent-get"}, methods)

	// session id is reused afterwards
	_, err = c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, methods, 2)
}

func TestTransmission_Add(t *testing.T) {
	srv := transmissionServer(t, func(method string, args map[string]any) any {
		require.Equal(t, "torrent-add", method)
		assert.Equal(t, "/dl", args["download-dir"])
		assert.Contains(t, args["filename"], "magnet:")
		return map[string]any{
			"torrent-added": map[string]any{"hashString": "AABBCCDDEEFF00112233445566778899AABBCCDD"},
		}
	})
	c := NewTransmissionClient(srv.URL, "", "", testLogger())

	hash, err := c.Add(context.Background(), "magnet:?xt=urn:btih:"+testHash, "/dl")
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
}

func TestTransmission_AddDuplicate(t *testing.T) {
	srv := transmissionServer(t, func(method string, args map[string]any) any {
		return map[string]any{
			"torrent-duplicate": map[string]any{"hashString": testHash},
		}
	})
	c := NewTransmissionClient(srv.URL, "", "", testLogger())

	hash, err := c.Add(context.Background(), "magnet:?xt=urn:btih:"+testHash, "")
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
}

func TestTransmission_List(t *testing.T) {
	srv := transmissionServer(t, func(method string, args map[string]any) any {
		require.Equal(t, "torrent-get", method)
		return map[string]any{"torrents": []map[string]any{
			{
				"hashString": testHash, "name": "ep06.mkv", "status": 4,
				"percentDone": 0.5, "totalSize": 1000, "rateDownload": 256,
				"eta": 60, "downloadDir": "/dl", "errorString": "",
			},
			{
				"hashString": "1111111111111111111111111111111111111111", "name": "done", "status": 6,
				"percentDone": 1.0, "totalSize": 2000, "rateDownload": 0,
				"eta": -1, "downloadDir": "/dl", "errorString": "",
			},
			{
				"hashString": "2222222222222222222222222222222222222222", "name": "broken", "status": 0,
				"percentDone": 0.1, "totalSize": 100, "rateDownload": 0,
				"eta": -1, "downloadDir": "/dl", "errorString": "tracker gave up",
			},
		}}
	})
	c := NewTransmissionClient(srv.URL, "", "", testLogger())

	torrents, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 3)

	assert.Equal(t, RemoteDownloading, torrents[0].State)
	assert.Equal(t, "/dl/ep06.mkv", torrents[0].ContentPath)
	assert.Equal(t, RemoteCompleted, torrents[1].State)
	assert.Equal(t, RemoteErrored, torrents[2].State)
	assert.Equal(t, "tracker gave up", torrents[2].Error)
}

func TestTransmission_PauseResumeRemove(t *testing.T) {
	var got []string
	srv := transmissionServer(t, func(method string, args map[string]any) any {
		got = append(got, method)
		if method == "torrent-remove" {
			assert.Equal(t, true, args["delete-local-data"])
		}
		return nil
	})
	c := NewTransmissionClient(srv.URL, "", "", testLogger())

	ctx := context.Background()
	require.NoError(t, c.Pause(ctx, testHash))
	require.NoError(t, c.Resume(ctx, testHash))
	require.NoError(t, c.Remove(ctx, testHash, true))
	assert.Equal(t, []string{"torrent-stop", "torrent-start", "torrent-remove"}, got)
}

func TestTransmission_AuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := NewTransmissionClient(srv.URL, "user", "bad", testLogger())

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestTransmission_DaemonDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := NewTransmissionClient(srv.URL, "", "", testLogger())

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrDaemonUnreachable)
}

func TestMapTransmissionStatus(t *testing.T) {
	assert.Equal(t, RemotePaused, mapTransmissionStatus(trStatusStopped, 0.3, ""))
	assert.Equal(t, RemoteCompleted, mapTransmissionStatus(trStatusStopped, 1, ""))
	assert.Equal(t, RemoteChecking, mapTransmissionStatus(trStatusCheck, 0, ""))
	assert.Equal(t, RemoteQueued, mapTransmissionStatus(trStatusDownloadWait, 0, ""))
	assert.Equal(t, RemoteDownloading, mapTransmissionStatus(trStatusDownload, 0.5, ""))
	assert.Equal(t, RemoteCompleted, mapTransmissionStatus(trStatusSeed, 1, ""))
	assert.Equal(t, RemoteErrored, mapTransmissionStatus(trStatusDownload, 0.5, "io error"))
}
