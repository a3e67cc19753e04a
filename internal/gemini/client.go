// Package gemini is a generative provider backed by the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/kalambet/mobi/internal/provider"
)

const (
	Name         = "gemini"
	systemPrompt = "You are Mobi, a desktop voice assistant. Answer in at most three short sentences of plain text."
)

// DefaultModels lists acceptable model identifiers in preference order.
var DefaultModels = []string{"2.5-pro", "1.5-pro", "2.5-flash"}

// ErrNoSupportedModel is returned when none of the listed models matches an
// acceptable identifier.
var ErrNoSupportedModel = errors.New("gemini: no supported model available")

// Backend is the part of the Gemini API the provider uses.
type Backend interface {
	ListModels(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Client answers queries with the first acceptable Gemini model.
type Client struct {
	apiKey     string
	acceptable []string
	backend    Backend

	mu       sync.Mutex
	selected string
}

// NewClient creates a provider using the Gemini API with apiKey. An empty
// acceptable list uses DefaultModels.
func NewClient(apiKey string, acceptable []string) *Client {
	return NewClientWithBackend(apiKey, acceptable, &genaiBackend{apiKey: apiKey})
}

// NewClientWithBackend creates a provider over a custom backend (for testing).
func NewClientWithBackend(apiKey string, acceptable []string, b Backend) *Client {
	if len(acceptable) == 0 {
		acceptable = DefaultModels
	}
	return &Client{apiKey: apiKey, acceptable: acceptable, backend: b}
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Name:       Name,
		Capability: provider.CapabilityGenerative,
		Available:  func() bool { return c.apiKey != "" },
	}
}

// Fetch generates a short answer to query.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	if c.apiKey == "" {
		return "", provider.ErrUnavailable
	}
	model, err := c.SelectModel(ctx)
	if err != nil {
		return "", err
	}
	text, err := c.backend.Generate(ctx, model, query)
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", model, err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", provider.ErrEmpty
	}
	return text, nil
}

// SelectModel picks the first listed model whose name contains an acceptable
// identifier, honoring the order of the acceptable list. The choice is cached
// after the first success.
func (c *Client) SelectModel(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != "" {
		return c.selected, nil
	}

	models, err := c.backend.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("listing models: %w", err)
	}
	for _, want := range c.acceptable {
		for _, m := range models {
			if strings.Contains(m, want) {
				c.selected = m
				return m, nil
			}
		}
	}
	return "", fmt.Errorf("%w (want one of %s)", ErrNoSupportedModel, strings.Join(c.acceptable, ", "))
}

// genaiBackend talks to the Gemini API through google.golang.org/genai.
type genaiBackend struct {
	apiKey string

	once   sync.Once
	client *genai.Client
	err    error
}

func (b *genaiBackend) connect(ctx context.Context) (*genai.Client, error) {
	b.once.Do(func() {
		b.client, b.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  b.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if b.err != nil {
			b.err = fmt.Errorf("creating genai client: %w", b.err)
		}
	})
	return b.client, b.err
}

func (b *genaiBackend) ListModels(ctx context.Context) ([]string, error) {
	client, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for m, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		names = append(names, m.Name)
	}
	return names, nil
}

func (b *genaiBackend) Generate(ctx context.Context, model, prompt string) (string, error) {
	client, err := b.connect(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
