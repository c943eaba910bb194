package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret store account for secret keys
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "WRENCH_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "WRENCH_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "service.backend", typ: kString, env: "WRENCH_SERVICE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Service.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Service.Backend },
	},
	{
		key: "service.base_url", typ: kString, env: "WRENCH_SERVICE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Service.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Service.BaseURL },
	},
	{
		key: "service.model", typ: kString, env: "WRENCH_SERVICE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Service.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Service.Model },
	},
	{
		key: "service.api_key", typ: kString, env: "WRENCH_SERVICE_API_KEY",
		secret: true, account: "service_api_key",
		apply:   func(cfg *Config, v any) { cfg.Service.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Service.APIKey },
	},
	{
		key: "service.timeout", typ: kDuration, env: "WRENCH_SERVICE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Service.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Service.Timeout },
	},
	{
		key: "service.rps", typ: kFloat, env: "WRENCH_SERVICE_RPS",
		apply:   func(cfg *Config, v any) { cfg.Service.RPS = v.(float64) },
		extract: func(cfg Config) any { return cfg.Service.RPS },
	},
	{
		key: "ollama.base_url", typ: kString, env: "WRENCH_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "session.max_sessions", typ: kInt, env: "WRENCH_SESSION_MAX_SESSIONS",
		apply:   func(cfg *Config, v any) { cfg.Session.MaxSessions = v.(int) },
		extract: func(cfg Config) any { return cfg.Session.MaxSessions },
	},
	{
		key: "history.default_limit", typ: kInt, env: "WRENCH_HISTORY_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.History.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.History.DefaultLimit },
	},
	{
		key: "log.level", typ: kString, env: "WRENCH_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts raw text to the Go type of typ.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kString:
		return raw, nil
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return nil, fmt.Errorf("unsupported key type %d", typ)
	}
}

// applyBackend copies stored settings into cfg. A value of the wrong type
// is reported and skipped; an unreadable store is an error.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		v, ok, err := readKey(b, s)
		if errors.Is(err, errBadValue) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read config key %v. Using default value.\n", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		if str, isStr := v.(string); isStr && str == "" {
			continue
		}
		s.apply(cfg, v)
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
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// applySecrets fills secret keys that are still empty from the secret store.
func applySecrets(cfg *Config, kc Keychain) {
	for _, s := range specs {
		if !s.secret || s.account == "" {
			continue
		}
		if cur, _ := s.extract(*cfg).(string); cur != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
