package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ConfigBackend stores non-secret settings in the platform's native place:
// UserDefaults on macOS, a JSON file elsewhere. Values keep the type of
// their key, so numbers and durations are stored as numbers. Durations are
// stored as seconds.
//
// Getters report ok=false for a missing key. An error wrapping
// errBadValue means the stored value has the wrong type; any other error
// means the store itself could not be read.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetFloat(key string) (val float64, ok bool, err error)
	GetDuration(key string) (val time.Duration, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetFloat(key string, val float64) error
	SetDuration(key string, val time.Duration) error
	Delete(key string) error
}

var errBadValue = errors.New("bad stored value")

func badValue(key string, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", key, fmt.Sprintf(format, args...), errBadValue)
}

// readKey reads s.key from b using the getter for its type.
func readKey(b ConfigBackend, s keySpec) (any, bool, error) {
	switch s.typ {
	case kInt:
		return typed(b.GetInt, s.key)
	case kFloat:
		return typed(b.GetFloat, s.key)
	case kDuration:
		return typed(b.GetDuration, s.key)
	default:
		return typed(b.GetString, s.key)
	}
}

func typed[T any](get func(string) (T, bool, error), key string) (any, bool, error) {
	v, ok, err := get(key)
	return v, ok, err
}

// writeKey stores v, already parsed for s.typ, in b.
func writeKey(b ConfigBackend, s keySpec, v any) error {
	switch s.typ {
	case kInt:
		return b.SetInt(s.key, v.(int))
	case kFloat:
		return b.SetFloat(s.key, v.(float64))
	case kDuration:
		return b.SetDuration(s.key, v.(time.Duration))
	default:
		return b.SetString(s.key, v.(string))
	}
}

func fromSeconds(key string, secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || secs < 0 || secs > math.MaxInt64/float64(time.Second) {
		return 0, badValue(key, "%v seconds is out of range", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// parseStoredDuration accepts seconds ("90") or Go duration syntax ("1m30s"),
// so hand-edited stores work either way.
func parseStoredDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return fromSeconds(key, secs)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, badValue(key, "%q is neither seconds nor a duration", raw)
	}
	return d, nil
}

func parseStoredFloat(key, raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, badValue(key, "%q is not a number", raw)
	}
	return f, nil
}

func parseStoredInt(key, raw string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, badValue(key, "%q is not an integer", raw)
	}
	return i, nil
}
