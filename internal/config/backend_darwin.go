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
	"time"
)

const defaultsDomain = "com.wrench.app"

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "wrench")
	}
	return "wrench-data"
}

func apiKeyHint() string {
	return fmt.Sprintf(" or the login Keychain (`security add-generic-password -s %s -a service_api_key -w <key>`)", keychainService)
}

// defaultsBackend keeps settings in UserDefaults through the defaults(1)
// tool. Numbers are written with -int and -float so `defaults read` shows
// them as numbers; durations are written as seconds.
type defaultsBackend struct {
	domain string
	run    func(args ...string) (string, error)
}

func newPlatformBackend() ConfigBackend {
	return &defaultsBackend{domain: defaultsDomain, run: runDefaults}
}

var errNoDefault = errors.New("no such default")

func runDefaults(args ...string) (string, error) {
	out, err := exec.Command("defaults", args...).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", errNoDefault
		}
		return "", fmt.Errorf("defaults %s: %w, output: %s", args[0], err, s)
	}
	return s, nil
}

func (b *defaultsBackend) read(key string) (string, bool, error) {
	s, err := b.run("read", b.domain, key)
	if errors.Is(err, errNoDefault) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (b *defaultsBackend) GetString(key string) (string, bool, error) {
	return b.read(key)
}

func (b *defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := parseStoredInt(key, s)
	return i, true, err
}

func (b *defaultsBackend) GetFloat(key string) (float64, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	f, err := parseStoredFloat(key, s)
	return f, true, err
}

func (b *defaultsBackend) GetDuration(key string) (time.Duration, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	d, err := parseStoredDuration(key, s)
	return d, true, err
}

func (b *defaultsBackend) write(key, typeFlag, val string) error {
	_, err := b.run("write", b.domain, key, typeFlag, val)
	return err
}

func (b *defaultsBackend) SetString(key, val string) error {
	return b.write(key, "-string", val)
}

func (b *defaultsBackend) SetInt(key string, val int) error {
	return b.write(key, "-int", strconv.Itoa(val))
}

func (b *defaultsBackend) SetFloat(key string, val float64) error {
	return b.write(key, "-float", strconv.FormatFloat(val, 'f', -1, 64))
}

func (b *defaultsBackend) SetDuration(key string, val time.Duration) error {
	return b.SetFloat(key, val.Seconds())
}

// Delete treats a key that is already absent as deleted.
func (b *defaultsBackend) Delete(key string) error {
	_, err := b.run("delete", b.domain, key)
	if errors.Is(err, errNoDefault) {
		return nil
	}
	return err
}
