// Package daemon manages the bounty daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	Faucet    FaucetConfig    `toml:"faucet"`
	Events    EventsConfig    `toml:"events"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Health    HealthConfig    `toml:"health"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	TokenTTL string `toml:"token_ttl"`
}

// StorageConfig controls where the SQLite database lives.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
	File   string `toml:"file"`   // empty = stderr
}

// FaucetConfig controls test-fund deposits.
type FaucetConfig struct {
	Enabled   bool   `toml:"enabled"`
	MaxAmount uint64 `toml:"max_amount"`
}

// EventsConfig controls lifecycle event publishing. Empty RedisAddr
// disables publishing.
type EventsConfig struct {
	RedisAddr string `toml:"redis_addr"`
	Channel   string `toml:"channel"`
}

// TelemetryConfig controls the Prometheus endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// HealthConfig controls the periodic health checks.
type HealthConfig struct {
	Interval string `toml:"interval"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := bountyHome()
	return Config{
		API: APIConfig{
			Host:     "127.0.0.1",
			Port:     8645,
			TokenTTL: "15m",
		},
		Storage: StorageConfig{
			Dir: homeDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Faucet: FaucetConfig{
			Enabled:   true,
			MaxAmount: 1_000_000,
		},
		Events: EventsConfig{
			Channel: "bounty:task_events",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Health: HealthConfig{
			Interval: "60s",
		},
	}
}

// LoadConfig reads config from $BOUNTY_HOME/config.toml, falling back to
// defaults, then applies .env and environment overrides.
func LoadConfig() (Config, error) {
	loadDotEnv()

	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $BOUNTY_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(bountyHome(), "config.toml")
}

// loadDotEnv loads .env from the working directory and then from the home
// directory. Variables already set in the process win.
func loadDotEnv() {
	for _, p := range []string{".env", filepath.Join(bountyHome(), ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BOUNTY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BOUNTY_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOUNTY_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("BOUNTY_REDIS_ADDR"); v != "" {
		cfg.Events.RedisAddr = v
	}
	if v := os.Getenv("BOUNTY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// bountyHome returns the bounty data directory.
func bountyHome() string {
	if env := os.Getenv("BOUNTY_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bounty")
}

// BountyHome is exported for use by other packages.
func BountyHome() string {
	return bountyHome()
}

// ─── Logging ────────────────────────────────────────────────────────────────

// NewLogger builds the process logger from cfg. The returned closer
// releases the log file; it is nil when logging to stderr.
func NewLogger(cfg LoggingConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	var closer io.Closer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

// DefaultTokenTTL applies when api.token_ttl is missing or malformed.
const DefaultTokenTTL = 15 * time.Minute

// TokenTTL returns how long CLI-issued request tokens stay valid.
func (c Config) TokenTTL() time.Duration {
	return parseDuration(c.API.TokenTTL, DefaultTokenTTL)
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
