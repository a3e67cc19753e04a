package provider

import (
	"fmt"
	"sort"
)

// Registry holds the configured providers by name and builds ordered chains.
type Registry struct {
	clients map[string]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds c under its descriptor name, replacing any previous entry.
func (r *Registry) Register(c Client) {
	r.clients[c.Descriptor().Name] = c
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Names returns registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Chain resolves names into a chain whose priorities follow the given order.
// Unknown names are an error so a typo in configuration is caught at startup.
func (r *Registry) Chain(names []string) ([]Client, error) {
	chain := make([]Client, 0, len(names))
	for i, n := range names {
		c, ok := r.clients[n]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", n)
		}
		chain = append(chain, WithPriority(c, i))
	}
	return chain, nil
}
