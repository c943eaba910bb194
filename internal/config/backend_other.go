//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "wrench-data"
		}
	}
	return filepath.Join(dir, "wrench")
}

func apiKeyHint() string {
	return " or " + secretsFilePath() + ` ({"wrench": {"service_api_key": "..."}})`
}

// fileBackend stores config as a flat JSON object keyed by config key, at
// $XDG_CONFIG_HOME/wrench/config.json. Numbers stay JSON numbers.
type fileBackend struct {
	path string
	data map[string]any
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	b.load()
	return b
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "wrench", "config.json")
}

func (b *fileBackend) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", b.path, err)
		}
		return
	}
	if err := json.Unmarshal(data, &b.data); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", b.path, err)
	}
}

func (b *fileBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v), true, nil
	}
	return s, true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, true, badValue(key, "%v is not a valid integer or is out of range", val)
		}
		return int(val), true, nil
	case string:
		i, err := parseStoredInt(key, val)
		return i, true, err
	default:
		return 0, true, badValue(key, "unexpected %T", v)
	}
}

func (b *fileBackend) GetFloat(key string) (float64, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		return val, true, nil
	case string:
		f, err := parseStoredFloat(key, val)
		return f, true, err
	default:
		return 0, true, badValue(key, "unexpected %T", v)
	}
}

// GetDuration reads seconds, or a duration string such as "2m" written by
// hand.
func (b *fileBackend) GetDuration(key string) (time.Duration, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		d, err := fromSeconds(key, val)
		return d, true, err
	case string:
		d, err := parseStoredDuration(key, val)
		return d, true, err
	default:
		return 0, true, badValue(key, "unexpected %T", v)
	}
}

func (b *fileBackend) SetString(key, val string) error {
	b.data[key] = val
	return b.save()
}

// Numbers are held as float64, the type they decode to after a reload.
func (b *fileBackend) SetInt(key string, val int) error {
	b.data[key] = float64(val)
	return b.save()
}

func (b *fileBackend) SetFloat(key string, val float64) error {
	b.data[key] = val
	return b.save()
}

func (b *fileBackend) SetDuration(key string, val time.Duration) error {
	return b.SetFloat(key, val.Seconds())
}

func (b *fileBackend) Delete(key string) error {
	delete(b.data, key)
	return b.save()
}
