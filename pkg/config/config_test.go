package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 0
	cfg.RateLimiting.WebSocket.Burst = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty http address", func(c *Config) { c.HTTP.Address = "" }},
		{"zero read timeout", func(c *Config) { c.HTTP.ReadTimeout = 0 }},
		{"pong timeout not above ping interval", func(c *Config) {
			c.Relay.PingInterval = 30 * time.Second
			c.Relay.PongTimeout = 30 * time.Second
		}},
		{"room code too short", func(c *Config) { c.Rooms.CodeLength = 2 }},
		{"room code too long", func(c *Config) { c.Rooms.CodeLength = 32 }},
		{"zero max students", func(c *Config) { c.Rooms.MaxStudents = 0 }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero join token ttl", func(c *Config) { c.Auth.JoinTokenTTL = 0 }},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"http rps must be > 0 when enabled", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"ws burst must be > 0 when enabled", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.WebSocket.Burst = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got error: %v", err)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.HTTP.Address)
	}
	if cfg.Rooms.CodeLength != 6 {
		t.Errorf("expected default code length 6, got %d", cfg.Rooms.CodeLength)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
http:
  address: ":9090"
rooms:
  code_length: 8
  max_students: 10
auth:
  jwt_secret: "test-secret"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Errorf("expected address :9090, got %s", cfg.HTTP.Address)
	}
	if cfg.Rooms.CodeLength != 8 {
		t.Errorf("expected code length 8, got %d", cfg.Rooms.CodeLength)
	}
	if cfg.Rooms.MaxStudents != 10 {
		t.Errorf("expected max students 10, got %d", cfg.Rooms.MaxStudents)
	}
	// Untouched sections keep their defaults.
	if cfg.Relay.PingInterval != 30*time.Second {
		t.Errorf("expected default ping interval, got %v", cfg.Relay.PingInterval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIVECLASS_HTTP_ADDRESS", ":7070")
	t.Setenv("LIVECLASS_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Address != ":7070" {
		t.Errorf("expected env address :7070, got %s", cfg.HTTP.Address)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected env jwt secret, got %s", cfg.Auth.JWTSecret)
	}
}
