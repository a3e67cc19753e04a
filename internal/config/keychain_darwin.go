//go:build darwin

package config

import (
	"errors"
	"os/exec"
)

// security exits 44 when no matching item exists.
const securityItemNotFound = 44

func keychainGet(service, account string) ([]byte, error) {
	out, err := exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
	if isItemNotFound(err) {
		return nil, errSecretNotSet
	}
	return out, err
}

// keychainSet stores value for account; an empty value removes the item.
func keychainSet(service, account, value string) error {
	if value == "" {
		err := exec.Command("security", "delete-generic-password", "-s", service, "-a", account).Run()
		if isItemNotFound(err) {
			return nil
		}
		return err
	}
	return exec.Command(
		"security", "add-generic-password",
		"-U",
		"-s", service,
		"-a", account,
		"-w", value,
	).Run()
}

func isItemNotFound(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == securityItemNotFound
}
