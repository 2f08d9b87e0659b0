package torrent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// QBittorrentClient drives qBittorrent through its WebUI API (v2).
type QBittorrentClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        *slog.Logger

	mu     sync.Mutex
	authed bool
}

// NewQBittorrentClient creates a qBittorrent backend client.
func NewQBittorrentClient(baseURL, username, password string, log *slog.Logger) *QBittorrentClient {
	if log == nil {
		log = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &QBittorrentClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		log:      log.With("component", "qbittorrent"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar, // session cookie from login
		},
	}
}

// login authenticates and stores the SID cookie in the jar.
func (c *QBittorrentClient) login(ctx context.Context) error {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "Ok") {
		return fmt.Errorf("%w: login rejected", ErrAuthFailed)
	}
	c.authed = true
	return nil
}

func (c *QBittorrentClient) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authed {
		return nil
	}
	return c.login(ctx)
}

// doForm posts a form to an API endpoint, re-authenticating once on 403.
func (c *QBittorrentClient) doForm(ctx context.Context, endpoint string, form url.Values) (string, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return "", err
	}

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusForbidden && attempt == 0 {
			c.mu.Lock()
			c.authed = false
			err = c.login(ctx)
			c.mu.Unlock()
			if err != nil {
				return "", err
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("qbittorrent %s: status %d", endpoint, resp.StatusCode)
		}
		return string(body), nil
	}
	return "", fmt.Errorf("%w: session expired", ErrAuthFailed)
}

// Add submits a magnet link. qBittorrent does not echo the hash back, so it
// is taken from the magnet itself.
func (c *QBittorrentClient) Add(ctx context.Context, magnet, savePath string) (string, error) {
	hash := InfoHashFromMagnet(magnet)
	if hash == "" {
		return "", fmt.Errorf("%w: magnet carries no infohash", ErrSubmissionFailed)
	}

	form := url.Values{"urls": {magnet}}
	if savePath != "" {
		form.Set("savepath", savePath)
	}
	body, err := c.doForm(ctx, "/api/v2/torrents/add", form)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(body, "Ok") {
		return "", fmt.Errorf("%w: %s", ErrSubmissionFailed, strings.TrimSpace(body))
	}
	c.log.Debug("torrent added", "hash", hash)
	return hash, nil
}

type qbitTorrent struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	Progress    float64 `json:"progress"`
	Size        int64   `json:"size"`
	DLSpeed     int64   `json:"dlspeed"`
	ETA         int64   `json:"eta"` // seconds, 8640000 = infinity
	SavePath    string  `json:"save_path"`
	ContentPath string  `json:"content_path"`
}

// List returns the daemon's transfer list.
func (c *QBittorrentClient) List(ctx context.Context) ([]RemoteTorrent, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v2/torrents/info", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qbittorrent list: status %d", resp.StatusCode)
	}

	var torrents []qbitTorrent
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil, fmt.Errorf("qbittorrent list: %w", err)
	}

	out := make([]RemoteTorrent, 0, len(torrents))
	for _, t := range torrents {
		rt := RemoteTorrent{
			Hash:         strings.ToLower(t.Hash),
			Name:         t.Name,
			State:        mapQbitState(t.State),
			Progress:     t.Progress,
			Size:         t.Size,
			DownloadRate: t.DLSpeed,
			SavePath:     t.SavePath,
			ContentPath:  t.ContentPath,
		}
		if t.ETA > 0 && t.ETA < 8640000 {
			rt.ETA = time.Duration(t.ETA) * time.Second
		}
		if rt.State == RemoteErrored {
			rt.Error = t.State
		}
		out = append(out, rt)
	}
	return out, nil
}

// Pause stops a transfer.
func (c *QBittorrentClient) Pause(ctx context.Context, hash string) error {
	_, err := c.doForm(ctx, "/api/v2/torrents/pause", url.Values{"hashes": {hash}})
	return err
}

// Resume restarts a paused transfer.
func (c *QBittorrentClient) Resume(ctx context.Context, hash string) error {
	_, err := c.doForm(ctx, "/api/v2/torrents/resume", url.Values{"hashes": {hash}})
	return err
}

// Remove drops the torrent from the daemon.
func (c *QBittorrentClient) Remove(ctx context.Context, hash string, deleteFiles bool) error {
	form := url.Values{
		"hashes":      {hash},
		"deleteFiles": {fmt.Sprintf("%t", deleteFiles)},
	}
	_, err := c.doForm(ctx, "/api/v2/torrents/delete", form)
	return err
}

func mapQbitState(state string) RemoteState {
	switch state {
	case "downloading", "stalledDL", "metaDL", "forcedDL":
		return RemoteDownloading
	case "queuedDL", "allocating":
		return RemoteQueued
	case "checkingDL", "checkingUP", "checkingResumeData":
		return RemoteChecking
	case "pausedDL", "stoppedDL":
		return RemotePaused
	case "uploading", "stalledUP", "queuedUP", "forcedUP", "pausedUP", "stoppedUP":
		return RemoteCompleted
	case "error", "missingFiles":
		return RemoteErrored
	default:
		return RemoteUnknown
	}
}
