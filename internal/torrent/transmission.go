package torrent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TransmissionClient drives transmission-daemon through its JSON RPC.
type TransmissionClient struct {
	rpcURL     string
	username   string
	password   string
	httpClient *http.Client
	log        *slog.Logger

	mu        sync.Mutex
	sessionID string
}

// NewTransmissionClient creates a Transmission backend client. baseURL is the
// daemon root, e.g. "http://localhost:9091".
func NewTransmissionClient(baseURL, username, password string, log *slog.Logger) *TransmissionClient {
	if log == nil {
		log = slog.Default()
	}
	return &TransmissionClient{
		rpcURL:   strings.TrimSuffix(baseURL, "/") + "/transmission/rpc",
		username: username,
		password: password,
		log:      log.With("component", "transmission"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

// call performs one RPC round trip, handling the 409 session-id handshake.
func (c *TransmissionClient) call(ctx context.Context, method string, args any, out any) error {
	payload, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		c.mu.Lock()
		if c.sessionID != "" {
			req.Header.Set("X-Transmission-Session-Id", c.sessionID)
		}
		c.mu.Unlock()
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
		}

		switch resp.StatusCode {
		case http.StatusConflict:
			// daemon handed us a fresh session id, retry with it
			c.mu.Lock()
			c.sessionID = resp.Header.Get("X-Transmission-Session-Id")
			c.mu.Unlock()
			resp.Body.Close()
			continue
		case http.StatusUnauthorized:
			resp.Body.Close()
			return fmt.Errorf("%w: basic auth rejected", ErrAuthFailed)
		case http.StatusOK:
			var rpcResp rpcResponse
			err := json.NewDecoder(resp.Body).Decode(&rpcResp)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("transmission %s: %w", method, err)
			}
			if rpcResp.Result != "success" {
				return fmt.Errorf("transmission %s: %s", method, rpcResp.Result)
			}
			if out != nil && len(rpcResp.Arguments) > 0 {
				if err := json.Unmarshal(rpcResp.Arguments, out); err != nil {
					return fmt.Errorf("transmission %s: %w", method, err)
				}
			}
			return nil
		default:
			resp.Body.Close()
			return fmt.Errorf("transmission %s: status %d", method, resp.StatusCode)
		}
	}
	return fmt.Errorf("%w: session handshake loop", ErrDaemonUnreachable)
}

type transmissionAddResult struct {
	TorrentAdded *struct {
		HashString string `json:"hashString"`
	} `json:"torrent-added"`
	TorrentDuplicate *struct {
		HashString string `json:"hashString"`
	} `json:"torrent-duplicate"`
}

// Add submits a magnet link. Duplicates are not an error; the daemon already
// has the torrent and the ledger add is idempotent anyway.
func (c *TransmissionClient) Add(ctx context.Context, magnet, savePath string) (string, error) {
	args := map[string]any{"filename": magnet}
	if savePath != "" {
		args["download-dir"] = savePath
	}

	var result transmissionAddResult
	if err := c.call(ctx, "torrent-add", args, &result); err != nil {
		if isTransportErr(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	switch {
	case result.TorrentAdded != nil:
		return strings.ToLower(result.TorrentAdded.HashString), nil
	case result.TorrentDuplicate != nil:
		return strings.ToLower(result.TorrentDuplicate.HashString), nil
	}
	return "", fmt.Errorf("%w: daemon returned no torrent", ErrSubmissionFailed)
}

type transmissionTorrent struct {
	HashString  string  `json:"hashString"`
	Name        string  `json:"name"`
	Status      int     `json:"status"`
	PercentDone float64 `json:"percentDone"`
	TotalSize   int64   `json:"totalSize"`
	RateDown    int64   `json:"rateDownload"`
	ETA         int64   `json:"eta"`
	DownloadDir string  `json:"downloadDir"`
	ErrorString string  `json:"errorString"`
}

var transmissionFields = []string{
	"hashString", "name", "status", "percentDone", "totalSize",
	"rateDownload", "eta", "downloadDir", "errorString",
}

// List returns the daemon's transfer list.
func (c *TransmissionClient) List(ctx context.Context) ([]RemoteTorrent, error) {
	var result struct {
		Torrents []transmissionTorrent `json:"torrents"`
	}
	if err := c.call(ctx, "torrent-get", map[string]any{"fields": transmissionFields}, &result); err != nil {
		return nil, err
	}

	out := make([]RemoteTorrent, 0, len(result.Torrents))
	for _, t := range result.Torrents {
		rt := RemoteTorrent{
			Hash:         strings.ToLower(t.HashString),
			Name:         t.Name,
			State:        mapTransmissionStatus(t.Status, t.PercentDone, t.ErrorString),
			Progress:     t.PercentDone,
			Size:         t.TotalSize,
			DownloadRate: t.RateDown,
			SavePath:     t.DownloadDir,
			ContentPath:  t.DownloadDir + "/" + t.Name,
			Error:        t.ErrorString,
		}
		if t.ETA > 0 {
			rt.ETA = time.Duration(t.ETA) * time.Second
		}
		out = append(out, rt)
	}
	return out, nil
}

// Pause stops a transfer.
func (c *TransmissionClient) Pause(ctx context.Context, hash string) error {
	return c.call(ctx, "torrent-stop", map[string]any{"ids": []string{hash}}, nil)
}

// Resume restarts a paused transfer.
func (c *TransmissionClient) Resume(ctx context.Context, hash string) error {
	return c.call(ctx, "torrent-start", map[string]any{"ids": []string{hash}}, nil)
}

// Remove drops the torrent from the daemon.
func (c *TransmissionClient) Remove(ctx context.Context, hash string, deleteFiles bool) error {
	args := map[string]any{
		"ids":               []string{hash},
		"delete-local-data": deleteFiles,
	}
	return c.call(ctx, "torrent-remove", args, nil)
}

// Transmission status values, per the RPC spec.
const (
	trStatusStopped      = 0
	trStatusCheckWait    = 1
	trStatusCheck        = 2
	trStatusDownloadWait = 3
	trStatusDownload     = 4
	trStatusSeedWait     = 5
	trStatusSeed         = 6
)

func mapTransmissionStatus(status int, percentDone float64, errorString string) RemoteState {
	if errorString != "" {
		return RemoteErrored
	}
	switch status {
	case trStatusStopped:
		if percentDone >= 1 {
			return RemoteCompleted
		}
		return RemotePaused
	case trStatusCheckWait, trStatusCheck:
		return RemoteChecking
	case trStatusDownloadWait:
		return RemoteQueued
	case trStatusDownload:
		return RemoteDownloading
	case trStatusSeedWait, trStatusSeed:
		return RemoteCompleted
	default:
		return RemoteUnknown
	}
}

func isTransportErr(err error) bool {
	return errors.Is(err, ErrDaemonUnreachable) || errors.Is(err, ErrAuthFailed)
}
