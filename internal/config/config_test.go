package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DictationDelay != 3*time.Second {
		t.Errorf("expected default delay 3s, got %s", cfg.DictationDelay)
	}
	if cfg.DictationQueueSize != 16 {
		t.Errorf("expected queue size 16, got %d", cfg.DictationQueueSize)
	}
	if cfg.CountMode != "group" {
		t.Errorf("expected count mode group, got %s", cfg.CountMode)
	}
	if !cfg.ResetHistoryOnProfileChange {
		t.Error("expected history reset on profile change by default")
	}
	if !cfg.MetricsEnabled {
		t.Error("expected metrics enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DICTATION_DELAY", "250ms")
	t.Setenv("COUNT_MODE", "entry")
	t.Setenv("RNG_SEED", "42")
	t.Setenv("RESET_HISTORY_ON_PROFILE_CHANGE", "false")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.DictationDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.DictationDelay)
	}
	if cfg.CountMode != "entry" {
		t.Errorf("expected entry, got %s", cfg.CountMode)
	}
	if cfg.RNGSeed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.RNGSeed)
	}
	if cfg.ResetHistoryOnProfileChange {
		t.Error("expected reset disabled")
	}
	if strings.Join(cfg.CORSOrigins, "|") != "http://a.example|http://b.example" {
		t.Errorf("unexpected origins %q", cfg.CORSOrigins)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DICTATION_QUEUE_SIZE=4\nENV=test\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DictationQueueSize != 4 {
		t.Errorf("expected queue size 4 from .env, got %d", cfg.DictationQueueSize)
	}
	if cfg.Env != "test" {
		t.Errorf("expected ENV=test from .env, got %s", cfg.Env)
	}
}

func validConfig() *Config {
	return &Config{
		Port:               "8000",
		Env:                "development",
		CountMode:          "group",
		DictationDelay:     3 * time.Second,
		DictationQueueSize: 16,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad env", func(c *Config) { c.Env = "staging" }},
		{"bad port", func(c *Config) { c.Port = "http" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"bad count mode", func(c *Config) { c.CountMode = "pairs" }},
		{"negative delay", func(c *Config) { c.DictationDelay = -time.Second }},
		{"empty queue", func(c *Config) { c.DictationQueueSize = 0 }},
		{"negative rate", func(c *Config) { c.RateLimitRPS = -1 }},
		{"tls without cert", func(c *Config) { c.TLSEnabled = true; c.TLSKeyFile = "k" }},
		{"tls without key", func(c *Config) { c.TLSEnabled = true; c.TLSCertFile = "c" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := validConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() || c.IsProduction() {
		t.Error("expected development mode")
	}
	c.Env = "production"
	if c.IsDev() || !c.IsProduction() {
		t.Error("expected production mode")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
