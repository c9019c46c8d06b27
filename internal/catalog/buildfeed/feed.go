// Package buildfeed scrapes an HTML build-history feed and exposes it as a
// catalog adapter. Feeds of this shape publish one table row per build with
// the build number, an optional version token, and a timestamp.
package buildfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"patchwatch/internal/catalog"
	"patchwatch/internal/titles"
)

const userAgent = "patchwatch/1.0"

var buildExpr = regexp.MustCompile(`\b\d{4,}\b`)

// Feed fetches and parses a build-history page.
type Feed struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Feed.
type Option func(*Feed)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Feed) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// New creates a build feed adapter rooted at baseURL.
func New(baseURL string, opts ...Option) (*Feed, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("buildfeed base url required")
	}
	feed := &Feed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(feed)
	}
	return feed, nil
}

var _ catalog.Provider = (*Feed)(nil)

// Name identifies the adapter.
func (f *Feed) Name() string {
	return "buildfeed"
}

// Search fetches the build history for a feed slug. The query is treated as
// the slug of the tracked title on the feed site.
func (f *Feed) Search(ctx context.Context, query string) ([]catalog.Candidate, error) {
	slug := slugify(query)
	if slug == "" {
		return nil, errors.New("query must not be empty")
	}

	doc, err := f.fetchDocument(ctx, fmt.Sprintf("%s/app/%s/history", f.baseURL, url.PathEscape(slug)))
	if err != nil {
		return nil, err
	}
	return extractBuilds(doc), nil
}

// LatestVersion returns the newest build from the history page for the id.
// History pages list builds newest-first, so the first row with a version
// token wins. Bare build numbers and dotted version tokens do not order
// against each other, which rules out a comparison-based scan here.
func (f *Feed) LatestVersion(ctx context.Context, canonicalID string) (*titles.Version, error) {
	candidates, err := f.Search(ctx, canonicalID)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if candidate.Version != nil {
			return candidate.Version, nil
		}
	}
	return nil, nil
}

func (f *Feed) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("buildfeed returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractBuilds(doc *goquery.Document) []catalog.Candidate {
	var collected []catalog.Candidate
	seen := map[string]struct{}{}

	doc.Find("table.builds tbody tr, ul.builds li").Each(func(i int, row *goquery.Selection) {
		candidate, ok := parseRow(row)
		if !ok {
			return
		}
		if _, dup := seen[candidate.ID]; dup {
			return
		}
		seen[candidate.ID] = struct{}{}
		collected = append(collected, candidate)
	})

	return collected
}

func parseRow(row *goquery.Selection) (catalog.Candidate, bool) {
	var candidate catalog.Candidate

	buildText := strings.TrimSpace(row.Find(".build-id").First().Text())
	if buildText == "" {
		buildText = buildExpr.FindString(row.Text())
	}
	if buildText == "" {
		return candidate, false
	}

	title := strings.TrimSpace(row.Find(".build-title").First().Text())
	if title == "" {
		title = strings.TrimSpace(row.Find("td").First().Text())
	}

	versionText := strings.TrimSpace(row.Find(".build-version").First().Text())
	token := versionText
	if token == "" {
		token = buildText
	}

	candidate = catalog.Candidate{
		ID:      buildText,
		Title:   title,
		Version: titles.ParseVersion(token),
	}

	if stamp, ok := row.Find("time").First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(stamp)); err == nil {
			candidate.Released = parsed
		}
	}
	if candidate.Released.IsZero() {
		dateText := strings.TrimSpace(row.Find(".build-date").First().Text())
		if parsed, err := time.Parse("2 Jan 2006", dateText); err == nil {
			candidate.Released = parsed
		}
	}

	return candidate, true
}

func slugify(query string) string {
	normalized := titles.Normalize(query)
	return strings.ReplaceAll(normalized, " ", "-")
}
