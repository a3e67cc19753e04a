package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kalambet/mobi/internal/intent"
	"github.com/kalambet/mobi/internal/provider"
)

// NothingFound is the reply when every provider in a chain failed.
const NothingFound = "Sorry, I couldn't find any information on that."

// Status is the terminal state of a resolution or dispatch.
type Status string

// StatusDegraded is never produced by Resolve. The dispatch engine uses it
// when an answer came from a substitute chain.
const (
	StatusSuccess  Status = "success"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Outcome records what happened to one provider in a chain.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeEmpty    Outcome = "empty"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
	OutcomeSuccess  Outcome = "success"
)

// Attempt is the per-provider trace of a resolution.
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Resolution is the answer chosen from a chain.
type Resolution struct {
	Text string
	// Provider is the descriptor that answered; nil when the chain was exhausted.
	Provider *provider.Descriptor
	Status   Status
	Attempts []Attempt
}

// Resolver walks provider chains in priority order.
type Resolver struct {
	logger *slog.Logger
}

// New returns a Resolver logging through slog.Default.
func New() *Resolver {
	return &Resolver{logger: slog.Default()}
}

// Resolve tries each provider in ascending priority and returns the first
// non-empty answer with StatusSuccess, however many providers were skipped or
// failed before it. Unavailable providers are skipped; errors, empty text and
// not-found replies move on to the next provider. Exhausting the chain yields
// NothingFound with StatusFailed. Resolve never returns an error.
func (r *Resolver) Resolve(ctx context.Context, category intent.Category, text string, chain []provider.Client) Resolution {
	ordered := make([]provider.Client, len(chain))
	copy(ordered, chain)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Descriptor().Priority < ordered[j].Descriptor().Priority
	})

	res := Resolution{Attempts: make([]Attempt, 0, len(ordered))}
	for _, c := range ordered {
		desc := c.Descriptor()
		if !desc.IsAvailable() {
			res.Attempts = append(res.Attempts, Attempt{Provider: desc.Name, Outcome: OutcomeSkipped})
			r.logger.Debug("provider skipped", "provider", desc.Name, "category", category)
			continue
		}

		start := time.Now()
		answer, err := safeFetch(ctx, c, text)
		a := Attempt{Provider: desc.Name, Duration: time.Since(start)}
		answer = strings.TrimSpace(answer)

		switch {
		case errors.Is(err, provider.ErrNotFound):
			a.Outcome = OutcomeNotFound
		case errors.Is(err, provider.ErrUnavailable):
			a.Outcome = OutcomeSkipped
			a.Error = err.Error()
		case err != nil:
			a.Outcome = OutcomeError
			a.Error = err.Error()
		case answer == "":
			a.Outcome = OutcomeEmpty
		default:
			a.Outcome = OutcomeSuccess
		}
		res.Attempts = append(res.Attempts, a)
		r.logger.Debug("provider attempt",
			"provider", desc.Name,
			"category", category,
			"outcome", a.Outcome,
			"duration_ms", a.Duration.Milliseconds(),
			"error", a.Error,
		)

		if a.Outcome == OutcomeSuccess {
			d := desc
			res.Text = answer
			res.Provider = &d
			res.Status = StatusSuccess
			return res
		}
	}

	r.logger.Warn("provider chain exhausted", "category", category, "attempts", len(res.Attempts))
	res.Text = NothingFound
	res.Status = StatusFailed
	return res
}

// safeFetch shields the resolver from a provider that panics.
func safeFetch(ctx context.Context, c provider.Client, text string) (answer string, err error) {
	defer func() {
		if p := recover(); p != nil {
			answer = ""
			err = fmt.Errorf("provider panicked: %v", p)
		}
	}()
	return c.Fetch(ctx, text)
}
