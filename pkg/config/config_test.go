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
		t.Fatalf("default config should validate, got error: %v", err)
	}
	if cfg.Signal.Address != ":5600" {
		t.Errorf("Signal.Address = %q, want :5600", cfg.Signal.Address)
	}
	if cfg.Input.Address != ":7777" {
		t.Errorf("Input.Address = %q, want :7777", cfg.Input.Address)
	}
	if cfg.Input.PeerLimit != 1 {
		t.Errorf("Input.PeerLimit = %d, want 1", cfg.Input.PeerLimit)
	}
	if cfg.Discovery.Interval != 2*time.Second {
		t.Errorf("Discovery.Interval = %v, want 2s", cfg.Discovery.Interval)
	}
	if cfg.Pipeline.VideoPort != 5601 || cfg.Pipeline.AudioPort != 5602 {
		t.Errorf("pipeline ports = %d/%d, want 5601/5602", cfg.Pipeline.VideoPort, cfg.Pipeline.AudioPort)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "signal address must not be empty",
			mutate: func(c *Config) {
				c.Signal.Address = ""
			},
		},
		{
			name: "pong timeout must exceed ping interval",
			mutate: func(c *Config) {
				c.Signal.PongTimeout = c.Signal.PingInterval
			},
		},
		{
			name: "input peer limit must be > 0",
			mutate: func(c *Config) {
				c.Input.PeerLimit = 0
			},
		},
		{
			name: "input poll interval must be > 0",
			mutate: func(c *Config) {
				c.Input.PollInterval = 0
			},
		},
		{
			name: "discovery tag required when enabled",
			mutate: func(c *Config) {
				c.Discovery.Enabled = true
				c.Discovery.ServiceTag = ""
			},
		},
		{
			name: "pipeline ports must differ",
			mutate: func(c *Config) {
				c.Pipeline.AudioPort = c.Pipeline.VideoPort
			},
		},
		{
			name: "unknown pointer target",
			mutate: func(c *Config) {
				c.Actuation.Pointer = "telepathy"
			},
		},
		{
			name: "bridge target requires bridge url",
			mutate: func(c *Config) {
				c.Actuation.Gamepad = "bridge"
				c.Actuation.BridgeURL = ""
			},
		},
		{
			name: "redis address required when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
		},
		{
			name: "tracing sample rate in range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 1.5
			},
		},
		{
			name: "http rps must be > 0 when rate limiting enabled",
			mutate: func(c *Config) {
				c.RateLimiting.Enabled = true
				c.RateLimiting.HTTP.RequestsPerSecond = 0
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() with missing file should not error, got: %v", err)
	}
	if cfg.Signal.Address != ":5600" {
		t.Errorf("Signal.Address = %q, want default :5600", cfg.Signal.Address)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("signal:\n  address: \":6611\"\ninput:\n  peer_limit: 2\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Signal.Address != ":6611" {
		t.Errorf("Signal.Address = %q, want :6611", cfg.Signal.Address)
	}
	if cfg.Input.PeerLimit != 2 {
		t.Errorf("Input.PeerLimit = %d, want 2", cfg.Input.PeerLimit)
	}
	// untouched sections keep defaults
	if cfg.Input.Address != ":7777" {
		t.Errorf("Input.Address = %q, want default :7777", cfg.Input.Address)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PLAYCAST_SIGNAL_ADDRESS", ":9999")
	t.Setenv("PLAYCAST_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Signal.Address != ":9999" {
		t.Errorf("Signal.Address = %q, want :9999 from env", cfg.Signal.Address)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug from env", cfg.Logging.Level)
	}
}
