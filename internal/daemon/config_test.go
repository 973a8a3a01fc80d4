package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tutu-network/bounty/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("BOUNTY_HOME", t.TempDir())
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8645 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8645)
	}
	if !cfg.Faucet.Enabled || cfg.Faucet.MaxAmount != 1_000_000 {
		t.Errorf("Faucet = %+v, want enabled with 1000000 cap", cfg.Faucet)
	}
	if cfg.Events.RedisAddr != "" {
		t.Errorf("Events.RedisAddr = %q, want empty", cfg.Events.RedisAddr)
	}
}

func TestBountyHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BOUNTY_HOME", dir)
	if got := BountyHome(); got != dir {
		t.Errorf("BountyHome() = %q, want %q", got, dir)
	}
	if got := ConfigPath(); got != filepath.Join(dir, "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	t.Setenv("BOUNTY_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 9999
	cfg.Faucet.Enabled = false
	cfg.Logging.Format = "json"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", got.API.Port)
	}
	if got.Faucet.Enabled {
		t.Error("Faucet.Enabled should round-trip as false")
	}
	if got.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", got.Logging.Format)
	}
}

func TestLoadConfig_BadTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BOUNTY_HOME", home)
	os.WriteFile(filepath.Join(home, "config.toml"), []byte("[api\nport = "), 0600)

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail on malformed TOML")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BOUNTY_HOME", t.TempDir())
	t.Setenv("BOUNTY_API_HOST", "0.0.0.0")
	t.Setenv("BOUNTY_API_PORT", "7000")
	t.Setenv("BOUNTY_REDIS_ADDR", "redis:6379")
	t.Setenv("BOUNTY_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 7000 {
		t.Errorf("API = %+v, want 0.0.0.0:7000", cfg.API)
	}
	if cfg.Events.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q", cfg.Events.RedisAddr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_BadPort(t *testing.T) {
	t.Setenv("BOUNTY_HOME", t.TempDir())
	t.Setenv("BOUNTY_API_PORT", "http")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should reject a non-numeric port")
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BOUNTY_HOME", home)
	os.WriteFile(filepath.Join(home, ".env"), []byte("BOUNTY_API_PORT=7100\n"), 0600)
	t.Cleanup(func() { os.Unsetenv("BOUNTY_API_PORT") })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 7100 {
		t.Errorf("API.Port = %d, want 7100 from .env", cfg.API.Port)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"2m", 2 * time.Minute},
		{"", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, time.Minute); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigTokenTTL(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.TokenTTL(); got != 15*time.Minute {
		t.Errorf("default TokenTTL() = %v, want 15m", got)
	}
	cfg.API.TokenTTL = "90s"
	if got := cfg.TokenTTL(); got != 90*time.Second {
		t.Errorf("TokenTTL() = %v, want 90s", got)
	}
	cfg.API.TokenTTL = "forever"
	if got := cfg.TokenTTL(); got != DefaultTokenTTL {
		t.Errorf("malformed TokenTTL() = %v, want %v", got, DefaultTokenTTL)
	}
}

func TestNewLogger_Stderr(t *testing.T) {
	logger, closer, err := NewLogger(LoggingConfig{Level: "warn"})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	if closer != nil {
		t.Errorf("closer = %T, want nil for stderr", closer)
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bounty.log")
	logger, closer, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	logger.Debug("hello")
	closer.Close()

	data, _ := os.ReadFile(path)
	if len(data) == 0 || data[0] != '{' {
		t.Errorf("log file = %q, want a JSON line", data)
	}
}

func TestNewWithConfig_Wires(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BOUNTY_HOME", home)
	cfg := DefaultConfig()
	cfg.Logging.File = filepath.Join(home, "bounty.log")

	d, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if d.Bounty == nil || d.Wallet == nil || d.Server == nil || d.Health == nil {
		t.Fatal("services should be wired")
	}
	if d.Events == nil {
		t.Error("Events should default to a no-op publisher")
	}
	if d.Config.TokenTTL() != 15*time.Minute {
		t.Errorf("TokenTTL() = %v, want 15m", d.Config.TokenTTL())
	}

	ctx := context.Background()
	d.Health.RunOnce(ctx)
	if !d.Health.IsHealthy() {
		t.Errorf("fresh daemon should be healthy: %+v", d.Health.Statuses())
	}
	found := false
	for _, st := range d.Health.Statuses() {
		found = found || st.Name == "task_counts"
	}
	if !found {
		t.Error("task_counts check should be registered")
	}
	if _, err := d.Wallet.Balance(ctx, domain.SystemPool); err != nil {
		t.Errorf("Balance() error: %v", err)
	}
}
