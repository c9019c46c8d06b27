// Package storefront implements the search-plus-detail catalog adapter
// against a store-style JSON API.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"patchwatch/internal/catalog"
	"patchwatch/internal/titles"
)

// Result models one entry of the storefront search response.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	ReleaseDate string `json:"release_date"`
	Version     string `json:"version"`
}

// Response models the paginated storefront search payload.
type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

// Detail models the storefront title detail payload.
type Detail struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	LatestVersion string `json:"latest_version"`
	LatestBuild   string `json:"latest_build"`
	UpdatedAt     string `json:"updated_at"`
}

// Client provides access to the storefront API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a storefront client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("storefront api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("storefront base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

var _ catalog.Provider = (*Client)(nil)

// Name identifies the adapter.
func (c *Client) Name() string {
	return "storefront"
}

// Search queries the storefront for titles matching the supplied query.
func (c *Client) Search(ctx context.Context, query string) ([]catalog.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	endpoint, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse storefront url: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storefront search returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload Response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode storefront response: %w", err)
	}

	candidates := make([]catalog.Candidate, 0, len(payload.Results))
	for _, result := range payload.Results {
		candidates = append(candidates, toCandidate(result))
	}
	return candidates, nil
}

// LatestVersion fetches the current version for a canonical storefront id.
func (c *Client) LatestVersion(ctx context.Context, canonicalID string) (*titles.Version, error) {
	canonicalID = strings.TrimSpace(canonicalID)
	if canonicalID == "" {
		return nil, errors.New("canonical id must not be empty")
	}
	endpoint, err := url.Parse(fmt.Sprintf("%s/titles/%s", c.baseURL, url.PathEscape(canonicalID)))
	if err != nil {
		return nil, fmt.Errorf("parse storefront url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storefront detail returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload Detail
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode storefront detail: %w", err)
	}

	token := strings.TrimSpace(payload.LatestVersion)
	if token == "" {
		token = strings.TrimSpace(payload.LatestBuild)
	}
	if token == "" {
		return nil, nil
	}
	return titles.ParseVersion(token), nil
}

func toCandidate(result Result) catalog.Candidate {
	candidate := catalog.Candidate{
		ID:      result.ID,
		Title:   result.Title,
		Summary: result.Summary,
	}
	if released, err := time.Parse("2006-01-02", result.ReleaseDate); err == nil {
		candidate.Released = released
	}
	if result.Version != "" {
		candidate.Version = titles.ParseVersion(result.Version)
	}
	return candidate
}
