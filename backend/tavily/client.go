package tavily

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/poiesic/sibyl/core"
)

// Package errors
var (
	// ErrAPIKeyRequired indicates the client was created without an API key.
	ErrAPIKeyRequired = errors.New("tavily api key is required")
)

const (
	defaultBaseURL = "https://api.tavily.com"
	defaultTimeout = 10 * time.Second
)

// Client queries the Tavily search API.
// Safe for concurrent use.
type Client struct {
	http   *resty.Client
	apiKey string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL overrides the API base URL. Intended for tests and
// self-hosted gateways.
func WithBaseURL(url string) Option {
	return func(c *Client) error {
		if url != "" {
			c.http.SetBaseURL(url)
		}
		return nil
	}
}

// WithTimeout sets the per-request timeout. Default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.http.SetTimeout(d)
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a Tavily client.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &Client{
		http:   resty.New().SetBaseURL(defaultBaseURL).SetTimeout(defaultTimeout),
		apiKey: apiKey,
		logger: slog.Default().With("component", "tavily"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// searchRequest is the Tavily /search request body.
type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// searchResponse is the Tavily /search response body.
type searchResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float32 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// Search returns up to maxResults hits for the query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]core.SearchResult, error) {
	if maxResults < 1 {
		maxResults = 5
	}

	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{APIKey: c.apiKey, Query: query, MaxResults: maxResults}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		c.logger.Error("search request failed", "err", err)
		return nil, fmt.Errorf("%w: %v", core.ErrSearchAPI, err)
	}
	if resp.IsError() {
		c.logger.Error("search request rejected", "status", resp.StatusCode())
		return nil, fmt.Errorf("%w: status %d", core.ErrSearchAPI, resp.StatusCode())
	}

	results := make([]core.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		result := core.SearchResult{
			Content: r.Content,
			URL:     r.URL,
			Title:   r.Title,
			Score:   r.Score,
		}
		if r.PublishedDate != "" {
			if ts, err := time.Parse(time.RFC3339, r.PublishedDate); err == nil {
				result.PublishedAt = ts
			}
		}
		results = append(results, result)
	}

	c.logger.Debug("search completed", "query", query, "results", len(results))
	return results, nil
}
