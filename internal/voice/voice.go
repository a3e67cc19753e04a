// Package voice holds the audio-side collaborators of the assistant: speech
// capture, speech synthesis, and the prompt/answer round-trip built on them.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NoInput is the sentinel text for a capture that produced nothing.
const NoInput = "none"

// ErrNoInput is returned when every capture attempt failed or timed out.
var ErrNoInput = errors.New("voice: no input captured")

// ErrClosed is returned once a listener's input source is exhausted. It
// matches ErrNoInput.
var ErrClosed = fmt.Errorf("%w: input closed", ErrNoInput)

// Listener captures one utterance.
type Listener interface {
	// Listen makes up to maxAttempts captures, each bounded by timeout, and
	// returns the first non-empty transcript lowercased.
	Listen(ctx context.Context, timeout time.Duration, maxAttempts int) (string, error)
}

// Speaker renders text as speech. Implementations swallow their own failures.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

// Capture runs l and folds any failure into the NoInput sentinel.
func Capture(ctx context.Context, l Listener, timeout time.Duration, maxAttempts int) string {
	text, err := l.Listen(ctx, timeout, maxAttempts)
	if err != nil {
		return NoInput
	}
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return NoInput
	}
	return text
}

// IsNoInput reports whether text is empty or the NoInput sentinel.
func IsNoInput(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "" || t == NoInput
}
