package dispatch

import (
	"strings"
	"time"

	"github.com/kalambet/mobi/internal/intent"
	"github.com/kalambet/mobi/internal/provider"
	"github.com/kalambet/mobi/internal/resolver"
)

// Source tells where an utterance came from.
type Source string

const (
	SourceVoice Source = "voice"
	SourceTyped Source = "typed"
)

// ParseSource maps free text to a Source, defaulting to typed.
func ParseSource(s string) Source {
	if Source(strings.ToLower(strings.TrimSpace(s))) == SourceVoice {
		return SourceVoice
	}
	return SourceTyped
}

// Utterance is one unit of user input.
type Utterance struct {
	Text   string
	Source Source
	At     time.Time
}

// NewUtterance normalizes text (trimmed, lowercased) and stamps it.
func NewUtterance(text string, source Source) Utterance {
	return Utterance{
		Text:   strings.ToLower(strings.TrimSpace(text)),
		Source: source,
		At:     time.Now(),
	}
}

// Result is the outcome of one dispatch. Text is never empty.
type Result struct {
	ID        string
	Utterance Utterance
	Category  intent.Category
	// Rule names the classifier rule that matched, empty for the fallback.
	Rule string
	// Provider is the source that produced Text, nil for fixed replies.
	Provider *provider.Descriptor
	Text     string
	Status   resolver.Status
	Attempts []resolver.Attempt
	// Empty is set when the utterance carried no command.
	Empty bool
}

// ProviderName returns the answering provider's name or "".
func (r Result) ProviderName() string {
	if r.Provider == nil {
		return ""
	}
	return r.Provider.Name
}
