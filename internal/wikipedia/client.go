// Package wikipedia looks up short article summaries.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/mobi/internal/provider"
)

const (
	Name             = "wikipedia"
	defaultBaseURL   = "https://en.wikipedia.org"
	defaultTimeout   = 10 * time.Second
	defaultSentences = 2
	userAgent        = "mobi/1.0 (https://github.com/kalambet/mobi)"
)

// Client queries the MediaWiki opensearch API for a title and then fetches
// the page summary from the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sentences  int
}

// New creates a client for en.wikipedia.org returning summaries of at most
// sentences sentences. Values below one use the default of two.
func New(sentences int) *Client {
	if sentences < 1 {
		sentences = defaultSentences
	}
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		sentences:  sentences,
	}
}

// NewWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewWithBaseURL(baseURL string, sentences int) *Client {
	c := New(sentences)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{Name: Name, Capability: provider.CapabilityFact}
}

// summary mirrors the fields used from /api/rest_v1/page/summary/{title}.
type summary struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// Fetch returns the first sentences of the best matching article.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", provider.ErrNotFound
	}

	title, err := c.search(ctx, query)
	if err != nil {
		return "", err
	}

	var s summary
	if err := c.getJSON(ctx, "/api/rest_v1/page/summary/"+url.PathEscape(strings.ReplaceAll(title, " ", "_")), &s); err != nil {
		return "", err
	}
	if s.Type == "disambiguation" {
		return "", fmt.Errorf("%q is ambiguous: %w", title, provider.ErrNotFound)
	}
	text := Truncate(s.Extract, c.sentences)
	if text == "" {
		return "", provider.ErrEmpty
	}
	return text, nil
}

// search resolves a free-text query to the best article title.
func (c *Client) search(ctx context.Context, query string) (string, error) {
	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("search", query)
	q.Set("limit", "1")
	q.Set("namespace", "0")
	q.Set("format", "json")

	// opensearch returns [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := c.getJSON(ctx, "/w/api.php?"+q.Encode(), &raw); err != nil {
		return "", err
	}
	if len(raw) < 2 {
		return "", fmt.Errorf("malformed opensearch response")
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return "", fmt.Errorf("decoding opensearch titles: %w", err)
	}
	if len(titles) == 0 || strings.TrimSpace(titles[0]) == "" {
		return "", provider.ErrNotFound
	}
	return titles[0], nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return provider.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Truncate keeps the first n sentences of text. A sentence ends at '.', '!'
// or '?' followed by whitespace or the end of the text.
func Truncate(text string, n int) string {
	text = strings.TrimSpace(text)
	if n < 1 || text == "" {
		return text
	}
	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				count++
				if count == n {
					return text[:i+1]
				}
			}
		}
	}
	return text
}
