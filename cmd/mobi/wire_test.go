package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kalambet/mobi/internal/action"
	"github.com/kalambet/mobi/internal/config"
	"github.com/kalambet/mobi/internal/dispatch"
	"github.com/kalambet/mobi/internal/voice"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Storage.DataDir = t.TempDir()
	cfg.Browser.Mode = "system"
	cfg.Wikipedia.Sentences = 2
	cfg.Voice.Name = "Mobi"
	cfg.Voice.TimeoutSeconds = 1
	cfg.Voice.MaxAttempts = 1
	cfg.Chains = config.ChainConfig{
		Fact:           "wikipedia,serpapi",
		Search:         "serpapi",
		Conversational: "gemini,openrouter,ollama",
		Score:          "scoreboard",
	}
	return cfg
}

func TestBuildRegistry_RegistersEveryProvider(t *testing.T) {
	reg := buildRegistry(testConfig(t))
	got := strings.Join(reg.Names(), ",")
	if got != "gemini,ollama,openrouter,scoreboard,serpapi,wikipedia" {
		t.Errorf("Names = %s", got)
	}
	if len(registeredClients(reg)) != 6 {
		t.Errorf("registeredClients returned %d", len(registeredClients(reg)))
	}
}

func TestBuildChains(t *testing.T) {
	reg := buildRegistry(testConfig(t))

	chains, err := buildChains(reg, map[string][]string{"fact": {"wikipedia", "serpapi"}})
	if err != nil {
		t.Fatalf("buildChains: %v", err)
	}
	fact := chains["fact"]
	if len(fact) != 2 || fact[0].Descriptor().Name != "wikipedia" || fact[1].Descriptor().Priority != 1 {
		t.Errorf("fact chain = %+v", fact)
	}

	if _, err := buildChains(reg, map[string][]string{"fact": {"wikipedai"}}); err == nil || !strings.Contains(err.Error(), "wikipedai") {
		t.Errorf("expected unknown provider error, got %v", err)
	}
}

func TestBuildActions(t *testing.T) {
	browser, messenger, closeFn, err := buildActions(config.BrowserConfig{Mode: "system"})
	if err != nil {
		t.Fatalf("system mode: %v", err)
	}
	if _, ok := browser.(*action.SystemBrowser); !ok {
		t.Errorf("system browser = %T", browser)
	}
	if _, ok := messenger.(*action.RodBrowser); !ok {
		t.Errorf("messenger = %T", messenger)
	}
	if err := closeFn(); err != nil {
		t.Errorf("closing an unused browser: %v", err)
	}

	browser, _, _, err = buildActions(config.BrowserConfig{Mode: "rod"})
	if err != nil {
		t.Fatalf("rod mode: %v", err)
	}
	if _, ok := browser.(*action.RodBrowser); !ok {
		t.Errorf("rod browser = %T", browser)
	}

	if _, _, _, err := buildActions(config.BrowserConfig{Mode: "lynx"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestBuildVoice(t *testing.T) {
	var out bytes.Buffer
	listener, speaker, err := buildVoice(config.VoiceConfig{Name: "Mobi"}, strings.NewReader("hello\n"), &out)
	if err != nil {
		t.Fatalf("buildVoice: %v", err)
	}
	if _, ok := listener.(*voice.LineListener); !ok {
		t.Errorf("listener = %T", listener)
	}
	speaker.Speak(context.Background(), "hi there")
	if out.String() != "Mobi: hi there\n" {
		t.Errorf("spoken = %q", out.String())
	}

	listener, speaker, err = buildVoice(config.VoiceConfig{Name: "Mobi", ListenCommand: "stt --lang en", SpeakCommand: "espeak"}, nil, &out)
	if err != nil {
		t.Fatalf("buildVoice with commands: %v", err)
	}
	if _, ok := listener.(*voice.CommandListener); !ok {
		t.Errorf("listener = %T", listener)
	}
	if m, ok := speaker.(voice.Multi); !ok || len(m) != 2 {
		t.Errorf("speaker = %#v", speaker)
	}
}

func TestNewApp_HandlesAndRecords(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	a, err := newApp(cfg, appOptions{Speaker: voice.NewConsoleSpeaker(&out, "Mobi")})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	res := a.assistant.Handle(context.Background(), dispatch.NewUtterance("what time is it", dispatch.SourceTyped), nil)
	if !strings.HasPrefix(res.Text, "The time is ") {
		t.Fatalf("Text = %q", res.Text)
	}
	if !strings.Contains(out.String(), "Mobi: The time is ") {
		t.Errorf("spoken = %q", out.String())
	}

	n, err := a.store.CountHistory(context.Background())
	if err != nil || n != 1 {
		t.Errorf("CountHistory = %d, %v", n, err)
	}
}

func TestNewApp_RejectsUnknownChainProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chains.Search = "serpapi,bing"

	if _, err := newApp(cfg, appOptions{}); err == nil || !strings.Contains(err.Error(), "bing") {
		t.Errorf("expected unknown provider error, got %v", err)
	}
}

func TestNewApp_BadRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Intent.RulesFile = cfg.Storage.DataDir + "/missing.yaml"

	if _, err := newApp(cfg, appOptions{}); err == nil {
		t.Error("expected error for missing rules file")
	}
}
