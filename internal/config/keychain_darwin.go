//go:build darwin

package config

import (
	"os/exec"
	"strings"
)

// macKeychain reads and writes generic passwords via the security CLI.
type macKeychain struct{}

// NewKeychain returns the macOS Keychain.
func NewKeychain() Keychain { return macKeychain{} }

func (macKeychain) Get(service, account string) (string, error) {
	out, err := exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (macKeychain) Set(service, account, value string) error {
	return exec.Command(
		"security", "add-generic-password",
		"-U",
		"-s", service,
		"-a", account,
		"-w", value,
	).Run()
}
