package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
  allowed_origins: ["https://bot.example.com"]
session:
  mode: strict_turn
  turn_timeout_seconds: 30
  inbound_sample_rate: 16000
  outbound_sample_rate: 24000
  frame_samples: 3200
redis:
  addr: "redis:6379"
  ttl_hours: 12
  max_turns: 20
  max_tokens: 4000
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Session.Mode != ModeStrictTurn {
		t.Errorf("expected strict_turn mode, got %q", cfg.Session.Mode)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("expected redis addr override, got %q", cfg.Redis.Addr)
	}
	// Unset fields keep their defaults.
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Errorf("expected default gemini model, got %q", cfg.Gemini.Model)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("REDIS_ADDR", "elsewhere:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("PORT override not applied, got %d", cfg.Server.Port)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Errorf("GEMINI_API_KEY override not applied")
	}
	if cfg.Redis.Addr != "elsewhere:6379" {
		t.Errorf("REDIS_ADDR override not applied, got %q", cfg.Redis.Addr)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown mode", func(c *Config) { c.Session.Mode = "freestyle" }},
		{"zero timeout", func(c *Config) { c.Session.TurnTimeoutSeconds = 0 }},
		{"low inbound rate", func(c *Config) { c.Session.InboundSampleRate = 4000 }},
		{"oversized frame", func(c *Config) { c.Session.FrameSamples = 16001 }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true; c.Auth.JWTSecret = "" }},
		{"redis without addr", func(c *Config) { c.Redis.Addr = "" }},
	}

	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestDisabledRedisSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.Redis.Disabled = true
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled redis should not require addr: %v", err)
	}
}
