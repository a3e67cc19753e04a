//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// xdgDir returns $env/mobi, falling back to ~/<fallback>/mobi and finally a
// directory relative to the working directory.
func xdgDir(env string, fallback ...string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return appName + "-data"
		}
		dir = filepath.Join(append([]string{home}, fallback...)...)
	}
	return filepath.Join(dir, appName)
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.json")
}

// fileBackend keeps config in a JSON file with one object per key prefix:
//
//	{"server": {"port": 4000}, "chain": {"search": ["serpapi", "gemini"]}}
//
// Flat dotted keys ({"server.port": 4000}) are read as well and rewritten
// nested on the next save.
type fileBackend struct {
	path string
	data section
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: section{}}
	b.load()
	return b
}

func (b *fileBackend) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", b.path, err)
		}
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", b.path, err)
		return
	}
	b.data = section(raw)
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, append(data, '\n'), 0o600)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data.lookup(key)
	if !ok {
		return "", false, nil
	}
	s, err := scalarString(key, v)
	return s, true, err
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data.lookup(key)
	if !ok {
		return 0, false, nil
	}
	i, err := scalarInt(key, v)
	return i, true, err
}

// SetString stores val. Chain and model lists are written as JSON arrays.
func (b *fileBackend) SetString(key, val string) error {
	if isListKey(key) {
		names := List(val)
		if names == nil {
			names = []string{}
		}
		b.data.assign(key, names)
	} else {
		b.data.assign(key, val)
	}
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.data.assign(key, val)
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	b.data.remove(key)
	return b.save()
}
