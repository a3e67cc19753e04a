package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	list    bool // comma separated names, stored as arrays by file backends
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "MOBI_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "MOBI_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "server.mcp", typ: kBool, env: "MOBI_SERVER_MCP",
		apply:   func(cfg *Config, v any) { cfg.Server.MCP = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCP },
	},
	{
		key: "storage.data_dir", typ: kString, env: "MOBI_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "MOBI_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "voice.name", typ: kString, env: "MOBI_VOICE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Voice.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.Name },
	},
	{
		key: "voice.timeout_seconds", typ: kInt, env: "MOBI_VOICE_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Voice.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Voice.TimeoutSeconds },
	},
	{
		key: "voice.max_attempts", typ: kInt, env: "MOBI_VOICE_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Voice.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Voice.MaxAttempts },
	},
	{
		key: "voice.listen_command", typ: kString, env: "MOBI_VOICE_LISTEN_COMMAND",
		apply:   func(cfg *Config, v any) { cfg.Voice.ListenCommand = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.ListenCommand },
	},
	{
		key: "voice.speak_command", typ: kString, env: "MOBI_VOICE_SPEAK_COMMAND",
		apply:   func(cfg *Config, v any) { cfg.Voice.SpeakCommand = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.SpeakCommand },
	},
	{
		key: "browser.mode", typ: kString, env: "MOBI_BROWSER_MODE",
		apply:   func(cfg *Config, v any) { cfg.Browser.Mode = v.(string) },
		extract: func(cfg Config) any { return cfg.Browser.Mode },
	},
	{
		key: "browser.debugger_url", typ: kString, env: "MOBI_BROWSER_DEBUGGER_URL",
		apply:   func(cfg *Config, v any) { cfg.Browser.DebuggerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Browser.DebuggerURL },
	},
	{
		key: "browser.user_data_dir", typ: kString, env: "MOBI_BROWSER_USER_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Browser.UserDataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Browser.UserDataDir },
	},
	{
		key: "browser.headless", typ: kBool, env: "MOBI_BROWSER_HEADLESS",
		apply:   func(cfg *Config, v any) { cfg.Browser.Headless = v.(bool) },
		extract: func(cfg Config) any { return cfg.Browser.Headless },
	},
	{
		key: "messaging.default_country_code", typ: kString, env: "MOBI_MESSAGING_DEFAULT_COUNTRY_CODE",
		apply:   func(cfg *Config, v any) { cfg.Messaging.DefaultCountryCode = v.(string) },
		extract: func(cfg Config) any { return cfg.Messaging.DefaultCountryCode },
	},
	{
		key: "intent.rules_file", typ: kString, env: "MOBI_INTENT_RULES_FILE",
		apply:   func(cfg *Config, v any) { cfg.Intent.RulesFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Intent.RulesFile },
	},
	{
		key: "chain.fact", typ: kString, env: "MOBI_CHAIN_FACT",
		list: true,
		apply:   func(cfg *Config, v any) { cfg.Chains.Fact = v.(string) },
		extract: func(cfg Config) any { return cfg.Chains.Fact },
	},
	{
		key: "chain.search", typ: kString, env: "MOBI_CHAIN_SEARCH",
		list: true,
		apply:   func(cfg *Config, v any) { cfg.Chains.Search = v.(string) },
		extract: func(cfg Config) any { return cfg.Chains.Search },
	},
	{
		key: "chain.conversational", typ: kString, env: "MOBI_CHAIN_CONVERSATIONAL",
		list: true,
		apply:   func(cfg *Config, v any) { cfg.Chains.Conversational = v.(string) },
		extract: func(cfg Config) any { return cfg.Chains.Conversational },
	},
	{
		key: "chain.score", typ: kString, env: "MOBI_CHAIN_SCORE",
		list: true,
		apply:   func(cfg *Config, v any) { cfg.Chains.Score = v.(string) },
		extract: func(cfg Config) any { return cfg.Chains.Score },
	},
	{
		key: "wikipedia.sentences", typ: kInt, env: "MOBI_WIKIPEDIA_SENTENCES",
		apply:   func(cfg *Config, v any) { cfg.Wikipedia.Sentences = v.(int) },
		extract: func(cfg Config) any { return cfg.Wikipedia.Sentences },
	},
	{
		key: "serpapi.api_key", typ: kString, env: "MOBI_SERPAPI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.SerpAPI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.SerpAPI.APIKey },
	},
	{
		key: "gemini.api_key", typ: kString, env: "MOBI_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.models", typ: kString, env: "MOBI_GEMINI_MODELS",
		list: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.Models = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.Models },
	},
	{
		key: "openrouter.api_key", typ: kString, env: "MOBI_OPENROUTER_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.APIKey },
	},
	{
		key: "openrouter.model", typ: kString, env: "MOBI_OPENROUTER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.Model },
	},
	{
		key: "ollama.base_url", typ: kString, env: "MOBI_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.models", typ: kString, env: "MOBI_OLLAMA_MODELS",
		list: true,
		apply:   func(cfg *Config, v any) { cfg.Ollama.Models = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Models },
	},
	{
		key: "scoreboard.url", typ: kString, env: "MOBI_SCOREBOARD_URL",
		apply:   func(cfg *Config, v any) { cfg.Scoreboard.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Scoreboard.URL },
	},
}

// account is the secret store account name for a secret key, e.g.
// "serpapi.api_key" becomes "serpapi_api_key".
func (s keySpec) account() string {
	return strings.ReplaceAll(s.key, ".", "_")
}

func isListKey(key string) bool {
	for _, s := range specs {
		if s.key == key {
			return s.list
		}
	}
	return false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
