//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func secretsFilePath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "secrets.json")
}

// secretsFile maps service to account to value. Without a system keychain
// this file, readable only by the owner, is the secret store.
type secretsFile map[string]map[string]string

func readSecrets(path string) (secretsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil && info.Mode().Perm()&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "[WARN] secrets file %s is readable by other users; run chmod 600 on it.\n", path)
	}
	var secrets secretsFile
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func keychainGet(service, account string) ([]byte, error) {
	secrets, err := readSecrets(secretsFilePath())
	if os.IsNotExist(err) {
		return nil, errSecretNotSet
	}
	if err != nil {
		return nil, err
	}
	val, ok := secrets[service][account]
	if !ok {
		return nil, errSecretNotSet
	}
	return []byte(val), nil
}

// keychainSet stores value for account; an empty value removes it.
func keychainSet(service, account, value string) error {
	p := secretsFilePath()
	secrets, err := readSecrets(p)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if secrets == nil {
		secrets = secretsFile{}
	}

	if value == "" {
		delete(secrets[service], account)
		if len(secrets[service]) == 0 {
			delete(secrets, service)
		}
	} else {
		if secrets[service] == nil {
			secrets[service] = map[string]string{}
		}
		secrets[service][account] = value
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, append(out, '\n'), 0o600)
}
