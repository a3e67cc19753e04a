// Package ollama is a local generative provider backed by an Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/mobi/internal/provider"
)

const (
	Name         = "ollama"
	chatTimeout  = 120 * time.Second
	systemPrompt = "You are Mobi, a desktop voice assistant. Answer in at most three short sentences of plain text."
)

// ErrNoSupportedModel is returned when no local model matches the acceptable identifiers.
var ErrNoSupportedModel = errors.New("ollama: no supported model installed")

// Message represents a chat message in the Ollama API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client communicates with a local Ollama instance over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	acceptable []string

	mu       sync.Mutex
	selected string
}

// New creates a Client targeting the given Ollama base URL. acceptable lists
// model identifiers in preference order, e.g. "llama3.2" or "qwen2.5:7b".
func New(baseURL string, acceptable []string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0,
		},
		acceptable: acceptable,
	}
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Name:       Name,
		Capability: provider.CapabilityGenerative,
		Available:  func() bool { return c.baseURL != "" && len(c.acceptable) > 0 },
	}
}

// Fetch asks the selected local model for a short answer.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	if c.baseURL == "" || len(c.acceptable) == 0 {
		return "", provider.ErrUnavailable
	}
	model, err := c.SelectModel(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()
	text, err := c.Chat(ctx, model, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: query},
	})
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", provider.ErrEmpty
	}
	return text, nil
}

// SelectModel returns the first acceptable identifier present locally. The
// choice is cached after the first success.
func (c *Client) SelectModel(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != "" {
		return c.selected, nil
	}

	models, err := c.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("selecting model: %w", err)
	}
	for _, want := range c.acceptable {
		for _, m := range models {
			// Ollama may return "phi3.5:latest"; match without tag suffix.
			if m == want || strings.HasPrefix(m, want+":") {
				c.selected = m
				return m, nil
			}
		}
	}
	return "", fmt.Errorf("%w (want one of %s)", ErrNoSupportedModel, strings.Join(c.acceptable, ", "))
}

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []modelEntry `json:"models"`
}

type modelEntry struct {
	Name string `json:"name"`
}

// IsRunning returns true if the Ollama server responds to GET /api/tags with 200.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of all models available in the local Ollama instance.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting model list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// chatResponse is the JSON returned by POST /api/chat (non-streaming).
type chatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

// Chat sends messages to the given model and returns the assistant's response.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("chat: %s", result.Error)
	}

	return result.Message.Content, nil
}
