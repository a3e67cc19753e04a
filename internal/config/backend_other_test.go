//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobi", "config.json")

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4200); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("browser.mode", "rod"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 4200 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	mode, ok, err := reloaded.GetString("browser.mode")
	if err != nil || !ok || mode != "rod" {
		t.Errorf("GetString = %q, %v, %v", mode, ok, err)
	}

	if err := reloaded.Delete("browser.mode"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := newFileBackend(path).GetString("browser.mode"); ok {
		t.Error("deleted key still present")
	}
}

func TestFileBackendWritesNestedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port": 4000}`), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4100); err != nil {
		t.Fatal(err)
	}
	if err := b.SetString("chain.search", " serpapi, gemini ,"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Flat   *int `json:"server.port"`
		Server struct {
			Port int `json:"port"`
		} `json:"server"`
		Chain struct {
			Search []string `json:"search"`
		} `json:"chain"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if got.Flat != nil {
		t.Error("flat server.port kept after rewrite")
	}
	if got.Server.Port != 4100 {
		t.Errorf("server.port = %d", got.Server.Port)
	}
	if len(got.Chain.Search) != 2 || got.Chain.Search[0] != "serpapi" || got.Chain.Search[1] != "gemini" {
		t.Errorf("chain.search = %v, want [serpapi gemini]", got.Chain.Search)
	}
}

func TestFileBackendLoadsIntoConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "server": {"port": 4300, "mcp": true},
  "wikipedia.sentences": "3",
  "openrouter": {"model": "meta/llama-3-70b"},
  "chain": {"conversational": ["ollama", "gemini"]}
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadWith(newFileBackend(path), mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 4300 || !cfg.Server.MCP || cfg.Wikipedia.Sentences != 3 {
		t.Errorf("cfg = %+v / %+v", cfg.Server, cfg.Wikipedia)
	}
	if cfg.OpenRouter.Model != "meta/llama-3-70b" {
		t.Errorf("OpenRouter.Model = %q", cfg.OpenRouter.Model)
	}
	if got := cfg.Chains.Map()["conversational"]; len(got) != 2 || got[0] != "ollama" || got[1] != "gemini" {
		t.Errorf("conversational chain = %v", got)
	}
}

func TestFileBackendRejectsFractionalInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": 40.5}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := newFileBackend(path).GetInt("server.port"); err == nil {
		t.Error("expected error for fractional integer")
	}
}

func TestSetKeyEmptyValueRestoresDefault(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	b := newFileBackend(path)
	if err := setKey(b, keychainSet, "voice.name", "Jarvis"); err != nil {
		t.Fatal(err)
	}
	if err := setKey(b, keychainSet, "voice.name", ""); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadWith(newFileBackend(path), mockKeychain{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Voice.Name != "Mobi" {
		t.Errorf("Voice.Name = %q, want the default", cfg.Voice.Name)
	}
}

func TestKeychainFileRoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if _, err := keychainGet(keychainService, "gemini_api_key"); !errors.Is(err, errSecretNotSet) {
		t.Errorf("get before any write = %v, want errSecretNotSet", err)
	}
	if err := keychainSet(keychainService, "gemini_api_key", "k-123"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	got, err := keychainReader{}.Get(keychainService, "gemini_api_key")
	if err != nil || got != "k-123" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if _, err := (keychainReader{}).Get(keychainService, "missing"); !errors.Is(err, errSecretNotSet) {
		t.Errorf("missing account = %v, want errSecretNotSet", err)
	}

	info, err := os.Stat(secretsFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secrets file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestKeychainFileEmptyValueRemovesSecret(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if err := keychainSet(keychainService, "serpapi_api_key", "s-1"); err != nil {
		t.Fatal(err)
	}
	if err := keychainSet(keychainService, "serpapi_api_key", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := keychainGet(keychainService, "serpapi_api_key"); !errors.Is(err, errSecretNotSet) {
		t.Errorf("removed secret = %v, want errSecretNotSet", err)
	}

	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		t.Fatal(err)
	}
	var secrets secretsFile
	if err := json.Unmarshal(data, &secrets); err != nil {
		t.Fatal(err)
	}
	if _, ok := secrets[keychainService]; ok {
		t.Errorf("secrets = %v, want the empty service dropped", secrets)
	}
}

func TestXDGDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	if got := configFilePath(); got != filepath.Join("/tmp/xdg-config", "mobi", "config.json") {
		t.Errorf("configFilePath = %q", got)
	}
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/someone")
	if got := defaultDataDir(); got != filepath.Join("/home/someone", ".local", "share", "mobi") {
		t.Errorf("defaultDataDir = %q", got)
	}
}
