package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by service.backend.
var serviceBackends = []string{"http", "gemini", "ollama"}

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Service ServiceConfig
	Ollama  OllamaConfig
	Session SessionConfig
	History HistoryConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// ServiceConfig selects the generative service lookups are sent to.
type ServiceConfig struct {
	Backend string
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
	// RPS caps outgoing calls per second; 0 disables the limit.
	RPS float64
}

type OllamaConfig struct {
	BaseURL string
}

type SessionConfig struct {
	MaxSessions int
}

type HistoryConfig struct {
	DefaultLimit int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Service: ServiceConfig{
			Backend: "http",
			Model:   "gemini-2.5-flash",
			Timeout: 90 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Session: SessionConfig{
			MaxSessions: 256,
		},
		History: HistoryConfig{
			DefaultLimit: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a .env file in the working directory, the
// platform-native backend, environment variables, and the platform secret
// store, in increasing order of precedence except for secrets, which the
// store only fills when nothing else did.
//
// On macOS the backend is UserDefaults (domain: com.wrench.app) and secrets
// live in the Keychain. Elsewhere the backend is a JSON file at
// $XDG_CONFIG_HOME/wrench/config.json and secrets live in
// $XDG_DATA_HOME/wrench/secrets.json.
//
// Environment variables (WRENCH_*) override backend values on all platforms.
func Load() (Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	return cfg, nil
}

// Validate reports settings the daemon cannot start with.
func (c Config) Validate() error {
	backend := strings.ToLower(c.Service.Backend)
	if !slices.Contains(serviceBackends, backend) {
		return fmt.Errorf("invalid service.backend %q (valid: %s)", c.Service.Backend, strings.Join(serviceBackends, ", "))
	}
	if backend == "http" && c.Service.BaseURL == "" {
		return fmt.Errorf("missing required config: service.base_url. " +
			"Set it with `wrench config set service.base_url <url>` or WRENCH_SERVICE_BASE_URL")
	}
	if backend == "gemini" && c.Service.APIKey == "" {
		return fmt.Errorf("missing required config: Gemini API key. "+
			"Set it via environment variable WRENCH_SERVICE_API_KEY%s", apiKeyHint())
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("invalid service.timeout %s", c.Service.Timeout)
	}
	if c.Service.RPS < 0 {
		return fmt.Errorf("invalid service.rps %v", c.Service.RPS)
	}
	return nil
}
