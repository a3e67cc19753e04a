// Package assistant is the session boundary around the dispatch engine. It
// serializes requests, records history, speaks and displays results, and
// turns any unexpected failure into an apology.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/mobi/internal/dispatch"
	"github.com/kalambet/mobi/internal/intent"
	"github.com/kalambet/mobi/internal/resolver"
	"github.com/kalambet/mobi/internal/storage"
	"github.com/kalambet/mobi/internal/voice"
)

// Apology is the reply when handling a request failed unexpectedly.
const Apology = "Oops! Something went wrong. Please try again."

const (
	listeningPrompt    = "Listening now..."
	defaultTimeout     = 5 * time.Second
	defaultMaxAttempts = 3
)

// HistoryRecorder persists handled requests.
type HistoryRecorder interface {
	AppendHistory(ctx context.Context, rec storage.HistoryRecord) error
}

// Display shows a finished result on a UI surface.
type Display interface {
	Show(res dispatch.Result)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(res dispatch.Result)

func (f DisplayFunc) Show(res dispatch.Result) { f(res) }

// WriterDisplay prints "You said" / result lines to w.
func WriterDisplay(w io.Writer) Display {
	return DisplayFunc(func(res dispatch.Result) {
		if res.Utterance.Text != "" {
			fmt.Fprintf(w, "You said: %s\n", res.Utterance.Text)
		}
		fmt.Fprintf(w, "[%s] %s\n", res.Status, res.Text)
	})
}

// Options configures an Assistant. Engine is required.
type Options struct {
	Engine   *dispatch.Engine
	History  HistoryRecorder
	Speaker  voice.Speaker
	Listener voice.Listener
	Display  Display
	// ListenTimeout and MaxAttempts bound each voice capture.
	ListenTimeout time.Duration
	MaxAttempts   int
}

// Assistant handles one request at a time.
type Assistant struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger
}

// New creates an Assistant.
func New(opts Options) *Assistant {
	if opts.Speaker == nil {
		opts.Speaker = voice.Silent{}
	}
	if opts.ListenTimeout <= 0 {
		opts.ListenTimeout = defaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &Assistant{opts: opts, logger: slog.Default()}
}

// Prompter returns the prompter used for voice follow-ups.
func (a *Assistant) Prompter() voice.Prompter {
	if a.opts.Listener == nil {
		return nil
	}
	return &voice.SpokenPrompter{
		Speaker:     a.opts.Speaker,
		Listener:    a.opts.Listener,
		Timeout:     a.opts.ListenTimeout,
		MaxAttempts: a.opts.MaxAttempts,
	}
}

// Handle dispatches u, records it, speaks and displays the result. Follow-up
// questions go through p; a nil p uses the engine's own prompter. Handle
// never panics and always returns a result.
func (a *Assistant) Handle(ctx context.Context, u dispatch.Utterance, p voice.Prompter) dispatch.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	res := a.dispatch(ctx, u, p)
	a.record(ctx, res)
	a.present(ctx, res)
	return res
}

func (a *Assistant) dispatch(ctx context.Context, u dispatch.Utterance, p voice.Prompter) (res dispatch.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("request failed", "text", u.Text, "panic", r)
			res = dispatch.Result{
				ID:        uuid.NewString(),
				Utterance: u,
				Category:  intent.Unrecognized,
				Text:      Apology,
				Status:    resolver.StatusFailed,
			}
		}
	}()

	eng := a.opts.Engine
	if p != nil {
		eng = eng.With(p)
	}
	return eng.Dispatch(ctx, u)
}

// record appends res to history. Empty input is not recorded and write
// failures are logged only.
func (a *Assistant) record(ctx context.Context, res dispatch.Result) {
	if a.opts.History == nil || res.Empty {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("history recorder panicked", "panic", r)
		}
	}()

	createdAt := res.Utterance.At
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := a.opts.History.AppendHistory(ctx, storage.HistoryRecord{
		ID:        res.ID,
		CreatedAt: createdAt,
		Source:    string(res.Utterance.Source),
		UserInput: res.Utterance.Text,
		Response:  res.Text,
		Intent:    string(res.Category),
		Provider:  res.ProviderName(),
		Status:    string(res.Status),
	})
	if err != nil {
		a.logger.Warn("saving history failed", "id", res.ID, "error", err)
	}
}

func (a *Assistant) present(ctx context.Context, res dispatch.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("presenting result panicked", "panic", r)
		}
	}()
	a.opts.Speaker.Speak(ctx, res.Text)
	if a.opts.Display != nil {
		a.opts.Display.Show(res)
	}
}

// ErrNoListener is returned by Listen when no listener is configured.
var ErrNoListener = errors.New("assistant: no listener configured")

// Listen captures one voice utterance and handles it. A failed capture is
// handled as the "none" sentinel. The error is non-nil only when capture can
// never succeed again (no listener, closed input, cancelled context).
func (a *Assistant) Listen(ctx context.Context) (dispatch.Result, error) {
	if a.opts.Listener == nil {
		return dispatch.Result{}, ErrNoListener
	}
	a.opts.Speaker.Speak(ctx, listeningPrompt)

	text, err := a.opts.Listener.Listen(ctx, a.opts.ListenTimeout, a.opts.MaxAttempts)
	switch {
	case ctx.Err() != nil:
		return dispatch.Result{}, ctx.Err()
	case errors.Is(err, voice.ErrClosed):
		return dispatch.Result{}, err
	case err != nil:
		text = voice.NoInput
	}

	res := a.Handle(ctx, dispatch.NewUtterance(text, dispatch.SourceVoice), a.Prompter())
	return res, nil
}

// Run listens and handles utterances until ctx is cancelled or the input
// source is closed.
func (a *Assistant) Run(ctx context.Context) error {
	for {
		if _, err := a.Listen(ctx); err != nil {
			if errors.Is(err, voice.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
