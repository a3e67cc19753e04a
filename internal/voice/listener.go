package voice

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// LineListener treats each line read from r as a finished transcript. It is
// the typed stand-in for a microphone.
type LineListener struct {
	r     io.Reader
	once  sync.Once
	lines chan string
}

// NewLineListener reads transcripts from r.
func NewLineListener(r io.Reader) *LineListener {
	return &LineListener{r: r}
}

func (l *LineListener) start() {
	l.once.Do(func() {
		l.lines = make(chan string, 32)
		go func() {
			defer close(l.lines)
			sc := bufio.NewScanner(l.r)
			for sc.Scan() {
				l.lines <- sc.Text()
			}
		}()
	})
}

func (l *LineListener) Listen(ctx context.Context, timeout time.Duration, maxAttempts int) (string, error) {
	l.start()
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		text, err := l.next(ctx, timeout)
		if err != nil {
			return "", err
		}
		if text != "" {
			return strings.ToLower(text), nil
		}
	}
	return "", ErrNoInput
}

// next waits for one line. A timeout or blank line yields "" with no error.
func (l *LineListener) next(ctx context.Context, timeout time.Duration) (string, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-l.lines:
		if !ok {
			return "", ErrClosed
		}
		return strings.TrimSpace(line), nil
	case <-expired:
		return "", nil
	}
}

// CommandListener runs an external speech-to-text program per attempt and
// takes its trimmed stdout as the transcript.
type CommandListener struct {
	name   string
	args   []string
	logger *slog.Logger
}

// NewCommandListener parses a command line such as "whisper-listen --lang en-IN".
func NewCommandListener(command string) (*CommandListener, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("listen command is empty")
	}
	return &CommandListener{name: fields[0], args: fields[1:], logger: slog.Default()}, nil
}

func (l *CommandListener) Listen(ctx context.Context, timeout time.Duration, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		text, err := l.once(ctx, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			l.logger.Warn("speech recognition failed", "attempt", attempt+1, "error", err)
			continue
		}
		if text != "" {
			return strings.ToLower(text), nil
		}
	}
	return "", ErrNoInput
}

func (l *CommandListener) once(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.name, l.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", l.name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ScriptListener replays a fixed list of answers, one per Listen call. It
// carries typed follow-up answers for requests that arrive without a microphone.
type ScriptListener struct {
	mu      sync.Mutex
	answers []string
}

// NewScriptListener returns a listener that yields answers in order.
func NewScriptListener(answers ...string) *ScriptListener {
	return &ScriptListener{answers: append([]string(nil), answers...)}
}

func (l *ScriptListener) Listen(ctx context.Context, _ time.Duration, _ int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.answers) == 0 {
		return "", ErrNoInput
	}
	next := l.answers[0]
	l.answers = l.answers[1:]
	if strings.TrimSpace(next) == "" {
		return "", ErrNoInput
	}
	return strings.ToLower(strings.TrimSpace(next)), nil
}
