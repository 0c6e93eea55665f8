package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SERVICEHUB_"

// Config holds configuration shared by the servicehub CLI and web console.
type Config struct {
	APIBaseURL     string        `yaml:"api_base_url" env:"API_URL"`            // Marketplace API base URL
	StateDir       string        `yaml:"state_dir" env:"STATE_DIR"`             // Local state directory (default ~/.servicehub)
	Ephemeral      bool          `yaml:"ephemeral" env:"EPHEMERAL"`             // Keep all client state in memory
	Addr           string        `yaml:"addr" env:"ADDR"`                       // Web console listen address
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`             // debug, info, warn, error
	LogFormat      string        `yaml:"log_format" env:"LOG_FORMAT"`           // text, json
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"` // Upper bound for every API call
	TokenMaxAge    time.Duration `yaml:"token_max_age" env:"TOKEN_MAX_AGE"`     // Lifetime of the token cookie
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:     "http://localhost:5000/api",
		Addr:           "127.0.0.1:3000",
		LogLevel:       "info",
		LogFormat:      "text",
		RequestTimeout: 15 * time.Second,
		TokenMaxAge:    7 * 24 * time.Hour,
	}
}

// Load builds a Config from defaults, then the YAML file at path (if not
// empty), then a .env file in the working directory, then SERVICEHUB_*
// environment variables. Later sources win. Load does not validate: callers
// apply command-line overrides first and then call Validate.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api base url is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.TokenMaxAge <= 0 {
		return fmt.Errorf("token max age must be positive, got %s", c.TokenMaxAge)
	}
	return nil
}

// DBPath resolves the SQLite path for local client state, creating the state
// directory when needed. Ephemeral configs use an in-memory database.
func (c Config) DBPath() (string, error) {
	if c.Ephemeral {
		return ":memory:", nil
	}
	dir := c.StateDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("find home directory: %w", err)
		}
		dir = filepath.Join(home, ".servicehub")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return filepath.Join(dir, "state.db"), nil
}
