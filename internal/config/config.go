package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	appName         = "mobi"
	keychainService = "mobi"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Log        LogConfig
	Voice      VoiceConfig
	Browser    BrowserConfig
	Messaging  MessagingConfig
	Intent     IntentConfig
	Chains     ChainConfig
	Wikipedia  WikipediaConfig
	SerpAPI    SerpAPIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Scoreboard ScoreboardConfig
}

type ServerConfig struct {
	Port int
	// Token enables bearer auth on the HTTP API when set.
	Token string
	// MCP also serves the MCP protocol on stdio.
	MCP bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type VoiceConfig struct {
	Name           string
	TimeoutSeconds int
	MaxAttempts    int
	// ListenCommand is a speech-to-text program; empty reads typed lines from stdin.
	ListenCommand string
	// SpeakCommand is a text-to-speech program; empty prints replies only.
	SpeakCommand string
}

// Timeout returns the per-capture timeout.
func (v VoiceConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

type BrowserConfig struct {
	// Mode is "system" (default desktop browser) or "rod" (automated Chrome).
	Mode        string
	DebuggerURL string
	UserDataDir string
	Headless    bool
}

type MessagingConfig struct {
	DefaultCountryCode string
}

type IntentConfig struct {
	RulesFile string
}

// ChainConfig lists provider names per chain, comma separated, in priority order.
type ChainConfig struct {
	Fact           string
	Search         string
	Conversational string
	Score          string
}

// Map returns the chains keyed by chain name.
func (c ChainConfig) Map() map[string][]string {
	return map[string][]string{
		"fact":           List(c.Fact),
		"search":         List(c.Search),
		"conversational": List(c.Conversational),
		"score":          List(c.Score),
	}
}

type WikipediaConfig struct {
	Sentences int
}

type SerpAPIConfig struct {
	APIKey string
}

type GeminiConfig struct {
	APIKey string
	Models string
}

type OpenRouterConfig struct {
	APIKey string
	Model  string
}

type OllamaConfig struct {
	BaseURL string
	Models  string
}

type ScoreboardConfig struct {
	URL string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Voice: VoiceConfig{
			Name:           "Mobi",
			TimeoutSeconds: 5,
			MaxAttempts:    3,
		},
		Browser: BrowserConfig{
			Mode: "system",
		},
		Messaging: MessagingConfig{
			DefaultCountryCode: "+91",
		},
		Chains: ChainConfig{
			Fact:           "wikipedia,serpapi,gemini,openrouter,ollama",
			Search:         "serpapi,gemini,openrouter,ollama",
			Conversational: "gemini,openrouter,ollama",
			Score:          "scoreboard,serpapi,gemini",
		},
		Wikipedia: WikipediaConfig{
			Sentences: 2,
		},
		Gemini: GeminiConfig{
			Models: "2.5-pro,1.5-pro,2.5-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "openai/gpt-4o-mini",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Models:  "llama3.2,qwen2.5,mistral",
		},
		Scoreboard: ScoreboardConfig{
			URL: "https://www.google.com/search",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.mobi.app) and secrets
// fall back to macOS Keychain (service: mobi).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/mobi/config.json
// and secrets fall back to $XDG_DATA_HOME/mobi/secrets.json.
//
// Environment variables (MOBI_*) override backend values on all platforms.
// Missing secrets are not an error; the providers needing them report
// themselves unavailable.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// errSecretNotSet reports an account with no stored secret.
var errSecretNotSet = errors.New("secret not set")

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	return cfg, nil
}

// applySecrets fills secrets still empty after env overrides from the
// platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		v, err := kc.Get(keychainService, s.account())
		if err != nil {
			if !errors.Is(err, errSecretNotSet) {
				fmt.Fprintf(os.Stderr, "[WARN] could not read %s from the secret store: %v\n", s.key, err)
			}
			continue
		}
		if v != "" {
			s.apply(cfg, v)
		}
	}
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// List splits a comma separated value, dropping blanks.
func List(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
