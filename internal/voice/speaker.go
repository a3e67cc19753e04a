package voice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const speakTimeout = 30 * time.Second

// ConsoleSpeaker writes "<name>: <text>" lines to w.
type ConsoleSpeaker struct {
	mu   sync.Mutex
	w    io.Writer
	name string
}

// NewConsoleSpeaker prefixes every line with the assistant name.
func NewConsoleSpeaker(w io.Writer, name string) *ConsoleSpeaker {
	return &ConsoleSpeaker{w: w, name: name}
}

func (s *ConsoleSpeaker) Speak(_ context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s: %s\n", s.name, text)
}

// CommandSpeaker pipes text to a text-to-speech program such as espeak or say.
type CommandSpeaker struct {
	name   string
	args   []string
	logger *slog.Logger
}

// NewCommandSpeaker parses a command line; the text is appended as the last argument.
func NewCommandSpeaker(command string) (*CommandSpeaker, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	return &CommandSpeaker{name: fields[0], args: fields[1:], logger: slog.Default()}, nil
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, speakTimeout)
	defer cancel()
	args := append(append([]string{}, s.args...), text)
	if out, err := exec.CommandContext(ctx, s.name, args...).CombinedOutput(); err != nil {
		s.logger.Warn("speech synthesis failed", "command", s.name, "error", err, "output", strings.TrimSpace(string(out)))
	}
}

// Multi fans text out to several speakers in order.
type Multi []Speaker

func (m Multi) Speak(ctx context.Context, text string) {
	for _, s := range m {
		if s != nil {
			s.Speak(ctx, text)
		}
	}
}

// Silent discards everything.
type Silent struct{}

func (Silent) Speak(context.Context, string) {}
