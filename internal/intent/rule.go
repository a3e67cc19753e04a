package intent

import (
	"fmt"
	"strings"
)

// Rule pairs a keyword predicate with the category it assigns. The optional
// fields parameterize the handler that serves the matched utterance.
type Rule struct {
	Name     string   `yaml:"name"`
	Any      []string `yaml:"any,omitempty"`
	All      []string `yaml:"all,omitempty"`
	Category Category `yaml:"category"`

	// Answer is a fixed reply; a rule with an answer never calls a provider.
	Answer string `yaml:"answer,omitempty"`
	// URL and Label drive navigation rules.
	URL   string `yaml:"url,omitempty"`
	Label string `yaml:"label,omitempty"`
	// Chain overrides the category's default provider chain.
	Chain string `yaml:"chain,omitempty"`
	// Strip lists words removed from the text before it is sent to providers.
	Strip []string `yaml:"strip,omitempty"`
	// FollowUp is asked when stripping leaves nothing to look up.
	FollowUp string `yaml:"follow_up,omitempty"`
	// Missing is the reply when the follow-up gets no answer.
	Missing string `yaml:"missing,omitempty"`
}

// Matches reports whether text satisfies the rule. Matching is plain substring
// containment, so "time" also matches "sometimes".
func (r Rule) Matches(text string) bool {
	if len(r.Any) == 0 && len(r.All) == 0 {
		return false
	}
	for _, kw := range r.All {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return true
	}
	for _, kw := range r.Any {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Query removes the rule's strip words from text and collapses whitespace.
func (r Rule) Query(text string) string {
	if len(r.Strip) == 0 {
		return strings.TrimSpace(text)
	}
	drop := make(map[string]bool, len(r.Strip))
	for _, w := range r.Strip {
		drop[w] = true
	}
	var kept []string
	for _, f := range strings.Fields(text) {
		if !drop[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func (r Rule) validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule without name")
	}
	if _, err := ParseCategory(string(r.Category)); err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	if r.Category == Unrecognized {
		return fmt.Errorf("rule %q: category %s cannot be assigned by a rule", r.Name, Unrecognized)
	}
	if len(r.Any) == 0 && len(r.All) == 0 {
		return fmt.Errorf("rule %q: needs at least one keyword in any or all", r.Name)
	}
	for _, kw := range append(append([]string{}, r.Any...), r.All...) {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("rule %q: empty keyword", r.Name)
		}
	}
	if r.Category == NavigationAction && r.URL == "" {
		return fmt.Errorf("rule %q: navigation rules need a url", r.Name)
	}
	return nil
}
