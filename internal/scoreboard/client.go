// Package scoreboard reads a live cricket score off a search results page.
package scoreboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kalambet/mobi/internal/provider"
)

const (
	Name           = "scoreboard"
	defaultBaseURL = "https://www.google.com/search"
	defaultQuery   = "cricket score"
	defaultTimeout = 10 * time.Second
	maxPageSize    = 4 << 20
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	summaryClass = "imso_mh__l-sf-sg"
	matchClass   = "BNeawe deIvCb AP7Wnd"
	scoreClass   = "BNeawe iBp4i AP7Wnd"
)

// Client fetches a results page and extracts the score card.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client reading Google's results page.
func New() *Client {
	return &Client{baseURL: defaultBaseURL, httpClient: &http.Client{Timeout: defaultTimeout}}
}

// NewWithBaseURL creates a client pointing at a custom results page (for testing).
func NewWithBaseURL(baseURL string) *Client {
	c := New()
	c.baseURL = baseURL
	return c
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{Name: Name, Capability: provider.CapabilityFact}
}

// Fetch searches for query, or "cricket score" when it is empty, and returns
// the live score found on the page.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" || !strings.Contains(query, "score") {
		query = defaultQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting results page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("parsing results page: %w", err)
	}
	return Extract(doc)
}

// Extract finds the score summary card, falling back to the plain-HTML
// match and score pair.
func Extract(doc *html.Node) (string, error) {
	if n := find(doc, hasClass(summaryClass)); n != nil {
		if text := textOf(n); text != "" {
			return "Live Cricket Score: " + text, nil
		}
	}
	match := find(doc, classIs(matchClass))
	score := find(doc, classIs(scoreClass))
	if match != nil && score != nil {
		m, s := textOf(match), textOf(score)
		if m != "" && s != "" {
			return m + " - " + s, nil
		}
	}
	return "", provider.ErrNotFound
}

func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func classAttr(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}

// hasClass matches elements carrying class among their classes.
func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range strings.Fields(classAttr(n)) {
			if c == class {
				return true
			}
		}
		return false
	}
}

// classIs matches elements whose class attribute is exactly classes.
func classIs(classes string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return strings.Join(strings.Fields(classAttr(n)), " ") == classes
	}
}

// textOf joins the element's text nodes with single spaces.
func textOf(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
