// Package dispatch turns an utterance into a result: it classifies the text,
// runs the matching direct handler or walks a provider fallback chain.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/mobi/internal/action"
	"github.com/kalambet/mobi/internal/intent"
	"github.com/kalambet/mobi/internal/provider"
	"github.com/kalambet/mobi/internal/resolver"
	"github.com/kalambet/mobi/internal/voice"
)

// NoCommand is the reply to empty or "none" input.
const NoCommand = "No command received"

// Chain names used when a rule does not pick its own chain.
const (
	ChainFact           = "fact"
	ChainSearch         = "search"
	ChainConversational = "conversational"
	ChainScore          = "score"
)

const (
	askNumber = "To which number do you want to send the message? Please say the full number including the country code."
	askBody   = "What is the message?"

	defaultCountryCode = "+91"
	defaultMissing     = "No topic provided."
)

var (
	browserProvider   = provider.Descriptor{Name: "browser", Capability: provider.CapabilityAction}
	messengerProvider = provider.Descriptor{Name: "whatsapp", Capability: provider.CapabilityAction}
)

// DefaultChain returns the chain consulted for category when the matched
// rule names none.
func DefaultChain(c intent.Category) string {
	switch c {
	case intent.FactLookup:
		return ChainFact
	case intent.WebSearchFallback:
		return ChainSearch
	default:
		return ChainConversational
	}
}

// Config wires the engine's collaborators. Classifier and Resolver are
// required; the rest may be nil, in which case the matching handlers fail
// with a diagnostic.
type Config struct {
	Classifier *intent.Classifier
	Resolver   *resolver.Resolver
	// Chains maps chain names to provider lists.
	Chains    map[string][]provider.Client
	Browser   action.Browser
	Messenger action.Messenger
	// Prompter serves follow-up questions asked by handlers.
	Prompter           voice.Prompter
	DefaultCountryCode string
	// Clock is used for time reports; defaults to time.Now.
	Clock func() time.Time
}

// Engine dispatches utterances. It holds no per-request state; callers
// serialize requests.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = defaultCountryCode
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.New()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.Default()
	}
	return &Engine{cfg: cfg, logger: slog.Default()}
}

// With returns a copy of the engine that asks follow-up questions through p.
func (e *Engine) With(p voice.Prompter) *Engine {
	cp := *e
	cp.cfg.Prompter = p
	return &cp
}

// Chain returns the providers registered under name.
func (e *Engine) Chain(name string) []provider.Client {
	return e.cfg.Chains[name]
}

// Dispatch handles one utterance and always returns a result with non-empty
// text. Handler errors and panics become failed results.
func (e *Engine) Dispatch(ctx context.Context, u Utterance) (res Result) {
	res = Result{ID: uuid.NewString(), Utterance: u, Category: intent.Unrecognized}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("dispatch panicked", "text", u.Text, "panic", p)
			res.Text = fmt.Sprintf("Something went wrong while handling that: %v", p)
			res.Status = resolver.StatusFailed
		}
		res.Text = strings.TrimSpace(res.Text)
		if res.Text == "" {
			res.Text = resolver.NothingFound
			res.Status = resolver.StatusFailed
		}
		e.logger.Info("dispatched",
			"category", res.Category,
			"rule", res.Rule,
			"provider", res.ProviderName(),
			"status", res.Status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	text := strings.TrimSpace(u.Text)
	if text == "" || voice.IsNoInput(text) {
		res.Empty = true
		res.Text = NoCommand
		res.Status = resolver.StatusFailed
		return res
	}

	m := e.cfg.Classifier.Match(text)
	res.Category = m.Category
	var rule intent.Rule
	if m.Rule != nil {
		rule = *m.Rule
		res.Rule = rule.Name
	}

	switch {
	case rule.Answer != "":
		res.Text, res.Status = rule.Answer, resolver.StatusSuccess
	case m.Category == intent.NavigationAction:
		e.navigate(ctx, rule, &res)
	case m.Category == intent.TimeQuery:
		res.Text = "The time is " + e.cfg.Clock().Format("03:04 PM")
		res.Status = resolver.StatusSuccess
	case m.Category == intent.MessagingAction:
		e.message(ctx, &res)
	default:
		e.resolve(ctx, text, rule, &res)
	}
	return res
}

func (e *Engine) navigate(ctx context.Context, rule intent.Rule, res *Result) {
	label := rule.Label
	if label == "" {
		label = rule.URL
	}
	d := browserProvider
	res.Provider = &d
	if e.cfg.Browser == nil {
		res.Text, res.Status = "Opening websites is not configured.", resolver.StatusFailed
		return
	}
	if err := e.cfg.Browser.Open(ctx, rule.URL); err != nil {
		e.logger.Warn("opening url failed", "url", rule.URL, "error", err)
		res.Text, res.Status = fmt.Sprintf("Could not open %s: %v", label, err), resolver.StatusFailed
		return
	}
	res.Text, res.Status = "Opened "+label, resolver.StatusSuccess
}

// message runs the two-step protocol: ask for the number, validate it, ask
// for the body, send. A missing answer or an invalid number ends the
// exchange before anything is sent.
func (e *Engine) message(ctx context.Context, res *Result) {
	d := messengerProvider
	res.Provider = &d
	res.Status = resolver.StatusFailed

	raw, err := e.ask(ctx, askNumber)
	if err != nil {
		res.Text = "No number received."
		return
	}
	number, err := action.NormalizeNumber(raw, e.cfg.DefaultCountryCode)
	if err != nil {
		res.Text = err.Error()
		return
	}

	body, err := e.ask(ctx, askBody)
	if err != nil {
		res.Text = "No message entered."
		return
	}

	if e.cfg.Messenger == nil {
		res.Text = "Messaging is not configured."
		return
	}
	if err := e.cfg.Messenger.SendMessage(ctx, number, body); err != nil {
		e.logger.Warn("sending message failed", "error", err)
		res.Text = fmt.Sprintf("Error sending WhatsApp message: %v. Make sure WhatsApp Web is logged in on your browser.", err)
		return
	}
	res.Text, res.Status = "Message sent successfully.", resolver.StatusSuccess
}

func (e *Engine) resolve(ctx context.Context, text string, rule intent.Rule, res *Result) {
	query := rule.Query(text)
	if query == "" && rule.FollowUp != "" {
		answer, err := e.ask(ctx, rule.FollowUp)
		if err != nil {
			res.Text = rule.Missing
			if res.Text == "" {
				res.Text = defaultMissing
			}
			res.Status = resolver.StatusFailed
			return
		}
		query = strings.TrimSpace(answer)
	}
	if query == "" {
		query = text
	}

	chain, substitute := e.chainFor(rule, res.Category)
	r := e.cfg.Resolver.Resolve(ctx, res.Category, query, e.cfg.Chains[chain])
	res.Text, res.Provider, res.Status, res.Attempts = r.Text, r.Provider, r.Status, r.Attempts
	if substitute && r.Status == resolver.StatusSuccess {
		res.Status = resolver.StatusDegraded
	}
}

// chainFor picks the chain for rule. A rule naming a chain that has no
// providers falls back to the category's default chain, reported as a
// substitute.
func (e *Engine) chainFor(rule intent.Rule, c intent.Category) (name string, substitute bool) {
	def := DefaultChain(c)
	if rule.Chain == "" || rule.Chain == def {
		return def, false
	}
	if len(e.cfg.Chains[rule.Chain]) > 0 {
		return rule.Chain, false
	}
	e.logger.Warn("chain not configured, using default", "chain", rule.Chain, "default", def)
	return def, true
}

// ask runs one follow-up round-trip. Any failure, including no prompter,
// is reported as voice.ErrNoInput.
func (e *Engine) ask(ctx context.Context, prompt string) (string, error) {
	if e.cfg.Prompter == nil {
		return "", voice.ErrNoInput
	}
	answer, err := e.cfg.Prompter.Ask(ctx, prompt)
	if err != nil {
		if !errors.Is(err, voice.ErrNoInput) {
			e.logger.Warn("follow-up failed", "prompt", prompt, "error", err)
		}
		return "", voice.ErrNoInput
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || voice.IsNoInput(answer) {
		return "", voice.ErrNoInput
	}
	return answer, nil
}
