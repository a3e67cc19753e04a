//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.mobi.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", appName)
	}
	return appName + "-data"
}

// darwinBackend stores config in UserDefaults. List keys are written as
// plist arrays so they can be edited with `defaults write -array`.
type darwinBackend struct {
	domain string
}

func newPlatformBackend() ConfigBackend {
	return &darwinBackend{domain: defaultsDomain}
}

func (b *darwinBackend) read(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", b.domain, key).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading default for key '%s': %w, output: %s", key, err, s)
	}
	return s, true, nil
}

// plistArray converts `defaults read` output for an array, such as
// `(\n    serpapi,\n    "gemini"\n)`, to comma form. Other values pass through.
func plistArray(s string) string {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return s
	}
	var names []string
	for _, item := range strings.Split(strings.Trim(s, "()"), ",") {
		if item = strings.Trim(strings.TrimSpace(item), `"`); item != "" {
			names = append(names, item)
		}
	}
	return strings.Join(names, ",")
}

func (b *darwinBackend) GetString(key string) (string, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return "", ok, err
	}
	return plistArray(s), true, nil
}

func (b *darwinBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *darwinBackend) SetString(key, val string) error {
	if isListKey(key) {
		args := append([]string{"write", b.domain, key, "-array"}, List(val)...)
		return exec.Command("defaults", args...).Run()
	}
	return exec.Command("defaults", "write", b.domain, key, "-string", val).Run()
}

func (b *darwinBackend) SetInt(key string, val int) error {
	return exec.Command("defaults", "write", b.domain, key, "-int", strconv.Itoa(val)).Run()
}

// Delete removes key; a key that was never set is not an error.
func (b *darwinBackend) Delete(key string) error {
	if _, ok, err := b.read(key); err != nil || !ok {
		return err
	}
	return exec.Command("defaults", "delete", b.domain, key).Run()
}
