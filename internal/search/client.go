package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vmunix/seiri/pkg/release"
)

const defaultBaseURL = "https://nyaa.si/"

// batchSizeThreshold: anything above this is assumed to be a pack even when
// the title carries no batch marker.
const batchSizeThreshold = 5 << 30 // 5 GiB

// Client fetches and parses the RSS feed.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient creates a search client. An empty baseURL selects nyaa.si.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "search"),
	}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title      string `xml:"title"`
	Link       string `xml:"link"`
	PubDate    string `xml:"pubDate"`
	Seeders    int    `xml:"seeders"`
	Leechers   int    `xml:"leechers"`
	Downloads  int    `xml:"downloads"`
	InfoHash   string `xml:"infoHash"`
	CategoryID string `xml:"categoryId"`
	Category   string `xml:"category"`
	Size       string `xml:"size"`
	Trusted    string `xml:"trusted"`
	Remake     string `xml:"remake"`
}

// Search queries the feed, sorted by seeders descending on the remote side.
// Failures of any kind wrap ErrUnavailable.
func (c *Client) Search(ctx context.Context, query string, category Category, filter Filter) ([]Result, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base url: %v", ErrUnavailable, err)
	}
	q := u.Query()
	q.Set("page", "rss")
	q.Set("q", query)
	q.Set("c", category.queryParam())
	q.Set("f", filter.queryParam())
	q.Set("s", "seeders")
	q.Set("o", "desc")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("feed request failed", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("feed returned non-200", "query", query, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		c.logger.Warn("feed decode failed", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	results := make([]Result, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		results = append(results, c.resultFromItem(item))
	}
	c.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}

func (c *Client) resultFromItem(item rssItem) Result {
	var size int64
	if item.Size != "" {
		if parsed, err := humanize.ParseBytes(item.Size); err == nil {
			size = int64(parsed)
		}
	}

	r := Result{
		Title:      item.Title,
		Category:   item.Category,
		Size:       size,
		Seeders:    item.Seeders,
		Leechers:   item.Leechers,
		Downloads:  item.Downloads,
		InfoHash:   item.InfoHash,
		TorrentURL: item.Link,
		Trusted:    item.Trusted == "Yes",
		Remake:     item.Remake == "Yes",
		Batch:      release.IsBatch(item.Title) || size > batchSizeThreshold,
	}
	if r.InfoHash != "" {
		r.Magnet = fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", r.InfoHash, url.QueryEscape(item.Title))
	}
	if item.PubDate != "" {
		if t, err := time.Parse(time.RFC1123Z, item.PubDate); err == nil {
			r.PublishedAt = t
		}
	}
	return r
}
