package intent

import "fmt"

// Category is the closed set of intents an utterance can resolve to.
type Category string

const (
	FactLookup             Category = "fact_lookup"
	NavigationAction       Category = "navigation_action"
	TimeQuery              Category = "time_query"
	MessagingAction        Category = "messaging_action"
	WebSearchFallback      Category = "web_search_fallback"
	ConversationalFallback Category = "conversational_fallback"
	Unrecognized           Category = "unrecognized"
)

var categories = []Category{
	FactLookup,
	NavigationAction,
	TimeQuery,
	MessagingAction,
	WebSearchFallback,
	ConversationalFallback,
	Unrecognized,
}

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory validates a category name read from a rule table.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown intent category %q", s)
}

// NeedsContent reports whether the category is answered by a provider chain
// rather than a direct handler.
func (c Category) NeedsContent() bool {
	switch c {
	case FactLookup, WebSearchFallback, ConversationalFallback:
		return true
	}
	return false
}
