package voice

import (
	"context"
	"time"
)

// Prompter runs one question/answer round-trip with the user.
type Prompter interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// SpokenPrompter speaks the prompt and waits for one answer, bounded by
// Timeout and MaxAttempts.
type SpokenPrompter struct {
	Speaker     Speaker
	Listener    Listener
	Timeout     time.Duration
	MaxAttempts int
}

func (p *SpokenPrompter) Ask(ctx context.Context, prompt string) (string, error) {
	if p.Speaker != nil && prompt != "" {
		p.Speaker.Speak(ctx, prompt)
	}
	text := Capture(ctx, p.Listener, p.Timeout, p.MaxAttempts)
	if text == NoInput {
		return "", ErrNoInput
	}
	return text, nil
}
