// Package config loads client-wide defaults the way the corpus loads
// service config: a struct with env tags decoded by envdecode, an
// optional .env file for local development, and an optional YAML file
// merged in underneath the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SessionConfig holds session-level settings for the commands. Of these,
// the commands read DefaultConnect (the context timeout for a command)
// and ConnectString; Options.withDefaults does not read this struct.
type SessionConfig struct {
	DefaultTimeout  time.Duration `json:"default_timeout" yaml:"default_timeout" env:"ENSEMBLE_SESSION_TIMEOUT"`
	DefaultConnect  time.Duration `json:"default_connect" yaml:"default_connect" env:"ENSEMBLE_CONNECT_TIMEOUT"`
	RandomizeHosts  bool          `json:"randomize_hosts" yaml:"randomize_hosts" env:"ENSEMBLE_RANDOMIZE_HOSTS"`
	ReadOnlyAllowed bool          `json:"read_only_allowed" yaml:"read_only_allowed" env:"ENSEMBLE_READ_ONLY_ALLOWED"`

	// ConnectString, if set, is a scheme://host[,host...][/chroot]
	// connection string naming a real ensemble to dial over
	// transport/wiretransport. Left empty, ensemblectl and
	// ensemble-watchtower fall back to an in-process fake ensemble.
	ConnectString string `json:"connect_string" yaml:"connect_string" env:"ENSEMBLE_CONNECT_STRING"`
}

// LoggingConfig controls the internal/logging.Logger built for the
// engine.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"ENSEMBLE_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"ENSEMBLE_LOG_FORMAT"`
}

// MetricsConfig controls where the admin server listens, if at all.
type MetricsConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" env:"ENSEMBLE_METRICS_ADDR"`
}

// Config is the top-level configuration structure for a process that
// embeds the client with its ambient stack fully wired (the
// ensemblectl and ensemble-watchtower commands).
type Config struct {
	Session SessionConfig `json:"session" yaml:"session"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Session: SessionConfig{
			DefaultTimeout:  30 * time.Second,
			DefaultConnect:  10 * time.Second,
			RandomizeHosts:  true,
			ReadOnlyAllowed: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9421",
		},
	}
}

// Load loads configuration from an optional .env file, an optional
// ensemble.yaml (or the path named by ENSEMBLE_CONFIG_FILE), and then
// the environment, in that order of increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("ENSEMBLE_CONFIG_FILE"))
	if path == "" {
		path = "ensemble.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
