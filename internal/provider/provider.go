package provider

import (
	"context"
	"errors"
)

// Capability tags what kind of content a provider returns.
type Capability string

const (
	CapabilityFact       Capability = "fact"
	CapabilitySearch     Capability = "search"
	CapabilityGenerative Capability = "generative"
	CapabilityAction     Capability = "action"
)

var (
	// ErrNotFound is returned by a provider that answered but had nothing for the query.
	ErrNotFound = errors.New("provider: no result")
	// ErrUnavailable is returned when a provider lacks credentials or configuration.
	ErrUnavailable = errors.New("provider: unavailable")
	// ErrEmpty marks a successful call whose payload held no usable text.
	ErrEmpty = errors.New("provider: empty response")
)

// Descriptor identifies a provider inside a fallback chain.
type Descriptor struct {
	Name       string
	Capability Capability
	// Priority orders providers within a chain; lower runs first.
	Priority int
	// Available reports whether the provider can be called at all, e.g. whether
	// its credential is present. A nil predicate means always available.
	Available func() bool
}

// IsAvailable evaluates the availability predicate.
func (d Descriptor) IsAvailable() bool {
	if d.Available == nil {
		return true
	}
	return d.Available()
}

// Fetcher is implemented by every concrete source client.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (string, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, query string) (string, error)

func (f FetchFunc) Fetch(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Client is the uniform capability wrapper the resolver works with.
type Client interface {
	Descriptor() Descriptor
	Fetch(ctx context.Context, query string) (string, error)
}

type wrapped struct {
	desc Descriptor
	f    Fetcher
}

// Wrap binds a descriptor to a source client.
func Wrap(desc Descriptor, f Fetcher) Client {
	return &wrapped{desc: desc, f: f}
}

func (w *wrapped) Descriptor() Descriptor { return w.desc }

func (w *wrapped) Fetch(ctx context.Context, query string) (string, error) {
	return w.f.Fetch(ctx, query)
}

// WithPriority returns a copy of c reporting the given priority.
func WithPriority(c Client, priority int) Client {
	d := c.Descriptor()
	d.Priority = priority
	return &wrapped{desc: d, f: c}
}
