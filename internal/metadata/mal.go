package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://api.myanimelist.net/v2"
	malFields      = "start_date,end_date,mean,status,num_episodes,synopsis,main_picture,genres"
)

// Anime is the slice of MAL metadata the library cares about.
type Anime struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	CoverURL string   `json:"cover_url,omitempty"`
	Synopsis string   `json:"synopsis,omitempty"`
	Score    float64  `json:"score,omitempty"`
	Status   string   `json:"status,omitempty"`
	Episodes int      `json:"episodes,omitempty"`
	Genres   []string `json:"genres,omitempty"`
}

// Client calls the MAL public API using a client-id header.
type Client struct {
	baseURL  string
	clientID string
	http     *http.Client
}

// NewClient creates a MAL client. baseURL is overridable for tests; empty
// means the public API.
func NewClient(baseURL, clientID string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

type malPicture struct {
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type malAnime struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	MainPicture *malPicture `json:"main_picture"`
	Synopsis    string      `json:"synopsis"`
	Mean        float64     `json:"mean"`
	Status      string      `json:"status"`
	NumEpisodes int         `json:"num_episodes"`
	Genres      []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

type malSearchResponse struct {
	Data []struct {
		Node malAnime `json:"node"`
	} `json:"data"`
}

// Search queries MAL for up to five matching shows.
func (c *Client) Search(ctx context.Context, query string) ([]Anime, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", "5")
	q.Set("fields", malFields)

	var resp malSearchResponse
	if err := c.get(ctx, c.baseURL+"/anime?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	results := make([]Anime, 0, len(resp.Data))
	for _, node := range resp.Data {
		results = append(results, animeFrom(node.Node))
	}
	return results, nil
}

// Details fetches one show by MAL id.
func (c *Client) Details(ctx context.Context, id int64) (*Anime, error) {
	q := url.Values{}
	q.Set("fields", malFields)

	var raw malAnime
	if err := c.get(ctx, c.baseURL+"/anime/"+strconv.FormatInt(id, 10)+"?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	a := animeFrom(raw)
	return &a, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MAL-CLIENT-ID", c.clientID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mal request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mal api: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mal response: %w", err)
	}
	return nil
}

func animeFrom(a malAnime) Anime {
	out := Anime{
		ID:       a.ID,
		Title:    a.Title,
		Synopsis: a.Synopsis,
		Score:    a.Mean,
		Status:   a.Status,
		Episodes: a.NumEpisodes,
	}
	if a.MainPicture != nil {
		out.CoverURL = a.MainPicture.Large
		if out.CoverURL == "" {
			out.CoverURL = a.MainPicture.Medium
		}
	}
	for _, g := range a.Genres {
		out.Genres = append(out.Genres, g.Name)
	}
	return out
}
