package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/mobi/internal/action"
	"github.com/kalambet/mobi/internal/assistant"
	"github.com/kalambet/mobi/internal/config"
	"github.com/kalambet/mobi/internal/dispatch"
	"github.com/kalambet/mobi/internal/gemini"
	"github.com/kalambet/mobi/internal/intent"
	"github.com/kalambet/mobi/internal/ollama"
	"github.com/kalambet/mobi/internal/openrouter"
	"github.com/kalambet/mobi/internal/provider"
	"github.com/kalambet/mobi/internal/resolver"
	"github.com/kalambet/mobi/internal/scoreboard"
	"github.com/kalambet/mobi/internal/serpapi"
	"github.com/kalambet/mobi/internal/storage"
	"github.com/kalambet/mobi/internal/voice"
	"github.com/kalambet/mobi/internal/wikipedia"
)

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// buildRegistry registers every provider the configuration can construct.
// Providers missing credentials are still registered and report themselves
// unavailable.
func buildRegistry(cfg config.Config) *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register(wikipedia.New(cfg.Wikipedia.Sentences))
	reg.Register(serpapi.NewClient(cfg.SerpAPI.APIKey))
	reg.Register(gemini.NewClient(cfg.Gemini.APIKey, config.List(cfg.Gemini.Models)))
	reg.Register(openrouter.NewClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model))
	reg.Register(ollama.New(cfg.Ollama.BaseURL, config.List(cfg.Ollama.Models)))
	reg.Register(scoreboard.NewWithBaseURL(cfg.Scoreboard.URL))
	return reg
}

func buildChains(reg *provider.Registry, names map[string][]string) (map[string][]provider.Client, error) {
	chains := make(map[string][]provider.Client, len(names))
	for name, providers := range names {
		chain, err := reg.Chain(providers)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", name, err)
		}
		chains[name] = chain
	}
	return chains, nil
}

// registeredClients returns every registered provider in name order.
func registeredClients(reg *provider.Registry) []provider.Client {
	var out []provider.Client
	for _, name := range reg.Names() {
		if c, ok := reg.Get(name); ok {
			out = append(out, c)
		}
	}
	return out
}

// buildActions returns the browser used for navigation and the messenger
// used for WhatsApp. The messenger always drives Chrome through rod; in
// "system" mode websites still open in the desktop browser.
func buildActions(cfg config.BrowserConfig) (action.Browser, action.Messenger, func() error, error) {
	rb := action.NewRodBrowser(action.RodConfig{
		DebuggerURL: cfg.DebuggerURL,
		UserDataDir: cfg.UserDataDir,
		Headless:    cfg.Headless,
	})
	switch cfg.Mode {
	case "", "system":
		return action.NewSystemBrowser(), rb, rb.Close, nil
	case "rod":
		return rb, rb, rb.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown browser mode %q (want system or rod)", cfg.Mode)
	}
}

// buildVoice returns the listener and speaker for an interactive session.
// Without a listen command, typed lines from in stand in for speech.
func buildVoice(cfg config.VoiceConfig, in io.Reader, out io.Writer) (voice.Listener, voice.Speaker, error) {
	var listener voice.Listener = voice.NewLineListener(in)
	if cfg.ListenCommand != "" {
		l, err := voice.NewCommandListener(cfg.ListenCommand)
		if err != nil {
			return nil, nil, err
		}
		listener = l
	}

	speakers := voice.Multi{voice.NewConsoleSpeaker(out, cfg.Name)}
	if cfg.SpeakCommand != "" {
		s, err := voice.NewCommandSpeaker(cfg.SpeakCommand)
		if err != nil {
			return nil, nil, err
		}
		speakers = append(speakers, s)
	}
	return listener, speakers, nil
}

// app holds everything a running assistant needs.
type app struct {
	store     *storage.Store
	registry  *provider.Registry
	assistant *assistant.Assistant
	closeFns  []func() error
}

// appOptions customizes how the assistant presents itself.
type appOptions struct {
	Listener voice.Listener
	Speaker  voice.Speaker
	Display  assistant.Display
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	classifier, err := intent.Load(cfg.Intent.RulesFile)
	if err != nil {
		return nil, err
	}

	reg := buildRegistry(cfg)
	chains, err := buildChains(reg, cfg.Chains.Map())
	if err != nil {
		return nil, err
	}

	browser, messenger, closeBrowser, err := buildActions(cfg.Browser)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	engine := dispatch.New(dispatch.Config{
		Classifier:         classifier,
		Resolver:           resolver.New(),
		Chains:             chains,
		Browser:            browser,
		Messenger:          messenger,
		DefaultCountryCode: cfg.Messaging.DefaultCountryCode,
	})

	a := assistant.New(assistant.Options{
		Engine:        engine,
		History:       store,
		Speaker:       opts.Speaker,
		Listener:      opts.Listener,
		Display:       opts.Display,
		ListenTimeout: cfg.Voice.Timeout(),
		MaxAttempts:   cfg.Voice.MaxAttempts,
	})

	return &app{
		store:     store,
		registry:  reg,
		assistant: a,
		closeFns:  []func() error{closeBrowser, store.Close},
	}, nil
}

func (a *app) Close() {
	for _, fn := range a.closeFns {
		if err := fn(); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
}
