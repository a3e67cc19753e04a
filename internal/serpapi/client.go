// Package serpapi answers questions from Google results through SerpAPI.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/mobi/internal/provider"
)

const (
	Name           = "serpapi"
	defaultBaseURL = "https://serpapi.com"
	defaultTimeout = 15 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client queries the SerpAPI Google engine.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a SerpAPI client. An empty key leaves the client unavailable.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Name:       Name,
		Capability: provider.CapabilitySearch,
		Available:  func() bool { return c.apiKey != "" },
	}
}

type searchResponse struct {
	Error     string `json:"error"`
	AnswerBox *struct {
		Answer           string   `json:"answer"`
		Snippet          string   `json:"snippet"`
		HighlightedWords []string `json:"snippet_highlighted_words"`
	} `json:"answer_box"`
	OrganicResults []struct {
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Fetch runs a Google search and returns the most direct answer it finds:
// the answer box, then its snippet or highlighted words, then the first
// organic snippet.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	if c.apiKey == "" {
		return "", provider.ErrUnavailable
	}

	var lastErr error
	for attempt := range maxRetries {
		res, err := c.search(ctx, query)
		if err == nil {
			return pickAnswer(res)
		}
		if !isRateLimit(err) {
			return "", err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

func pickAnswer(res *searchResponse) (string, error) {
	if res.AnswerBox != nil {
		if s := strings.TrimSpace(res.AnswerBox.Answer); s != "" {
			return s, nil
		}
		if s := strings.TrimSpace(res.AnswerBox.Snippet); s != "" {
			return s, nil
		}
		if len(res.AnswerBox.HighlightedWords) > 0 {
			return strings.Join(res.AnswerBox.HighlightedWords, ", "), nil
		}
	}
	if len(res.OrganicResults) > 0 {
		if s := strings.TrimSpace(res.OrganicResults[0].Snippet); s != "" {
			return s, nil
		}
	}
	return "", provider.ErrNotFound
}

type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

func (c *Client) search(ctx context.Context, query string) (*searchResponse, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", res.Error)
	}
	return &res, nil
}
