package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://api.tavily.com"
	DefaultMaxResults = 5
)

// Client is the Tavily search API client.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// New creates a new Tavily client.
func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tavily API key is required")
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		maxResults: DefaultMaxResults,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

// NewFromConfig applies the optional overrides of cfg.
func NewFromConfig(cfg Config) (*Client, error) {
	c, err := New(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL != "" {
		c.WithBaseURL(cfg.BaseURL)
	}
	if cfg.MaxResults > 0 {
		c.WithMaxResults(cfg.MaxResults)
	}
	return c, nil
}

// WithBaseURL overrides the default API base URL.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithMaxResults caps the number of results per query.
func (c *Client) WithMaxResults(n int) *Client {
	c.maxResults = n
	return c
}

// Search runs a basic-depth web search.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	bodyBytes, err := json.Marshal(SearchRequest{
		Query:       query,
		MaxResults:  c.maxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/search", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call Tavily API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if jsonErr := json.NewDecoder(resp.Body).Decode(&errResp); jsonErr == nil && errResp.Detail.Error != "" {
			return nil, fmt.Errorf("tavily API error (%d): %s", resp.StatusCode, errResp.Detail.Error)
		}
		return nil, fmt.Errorf("tavily API error: %d", resp.StatusCode)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return searchResp.Results, nil
}

var _ ITavily = (*Client)(nil)
