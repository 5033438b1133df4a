package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Signal struct {
		Address         string        `yaml:"address"`
		RequirePIN      bool          `yaml:"require_pin"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
	} `yaml:"signal"`

	Input struct {
		Address      string        `yaml:"address"`
		PeerLimit    int           `yaml:"peer_limit"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
		PollInterval time.Duration `yaml:"poll_interval"`
		WindowSize   int           `yaml:"window_size"`
	} `yaml:"input"`

	Discovery struct {
		Enabled          bool          `yaml:"enabled"`
		BroadcastAddress string        `yaml:"broadcast_address"`
		Interval         time.Duration `yaml:"interval"`
		ServiceTag       string        `yaml:"service_tag"`
	} `yaml:"discovery"`

	Pipeline struct {
		Launcher    string        `yaml:"launcher"`
		VideoPort   int           `yaml:"video_port"`
		AudioPort   int           `yaml:"audio_port"`
		StopTimeout time.Duration `yaml:"stop_timeout"`
	} `yaml:"pipeline"`

	Admin struct {
		Enabled         bool          `yaml:"enabled"`
		Address         string        `yaml:"address"`
		PINGuard        bool          `yaml:"pin_guard"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SnapshotTTL     time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"admin"`

	Actuation struct {
		Pointer     string        `yaml:"pointer"`
		Gamepad     string        `yaml:"gamepad"`
		BridgeURL   string        `yaml:"bridge_url"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
	} `yaml:"actuation"`

	Settings struct {
		Path            string        `yaml:"path"`
		BackupDir       string        `yaml:"backup_dir"`
		BackupInterval  time.Duration `yaml:"backup_interval"`
		BackupRetention int           `yaml:"backup_retention"`
	} `yaml:"settings"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Address   string        `yaml:"address"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		PoolSize  int           `yaml:"pool_size"`
		KeyPrefix string        `yaml:"key_prefix"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		SampleRate  float64 `yaml:"sample_rate"`
		Environment string  `yaml:"environment"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		Signal struct {
			ConnectionsPerMinute int `yaml:"connections_per_minute"`
		} `yaml:"signal"`
	} `yaml:"rate_limiting"`
}

// Validate rejects configurations the host cannot run with. Checks on
// optional subsystems apply only while that subsystem is enabled.
func (c *Config) Validate() error {
	if c.Signal.Address == "" {
		return fmt.Errorf("signal.address is required")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be positive")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must exceed signal.ping_interval")
	}
	if c.Signal.ShutdownTimeout <= 0 {
		return fmt.Errorf("signal.shutdown_timeout must be positive")
	}
	if c.Signal.MaxMessageBytes < 0 {
		return fmt.Errorf("signal.max_message_bytes cannot be negative")
	}

	if c.Input.Address == "" {
		return fmt.Errorf("input.address is required")
	}
	if c.Input.PeerLimit <= 0 {
		return fmt.Errorf("input.peer_limit must be positive")
	}
	if c.Input.IdleTimeout <= 0 {
		return fmt.Errorf("input.idle_timeout must be positive")
	}
	if c.Input.PollInterval <= 0 {
		return fmt.Errorf("input.poll_interval must be positive")
	}
	if c.Input.WindowSize <= 0 {
		return fmt.Errorf("input.window_size must be positive")
	}

	if c.Discovery.Enabled {
		if c.Discovery.BroadcastAddress == "" {
			return fmt.Errorf("discovery.broadcast_address is required when discovery is enabled")
		}
		if c.Discovery.Interval <= 0 {
			return fmt.Errorf("discovery.interval must be positive when discovery is enabled")
		}
		if c.Discovery.ServiceTag == "" {
			return fmt.Errorf("discovery.service_tag is required when discovery is enabled")
		}
	}

	if c.Pipeline.Launcher == "" {
		return fmt.Errorf("pipeline.launcher is required")
	}
	if c.Pipeline.VideoPort <= 0 || c.Pipeline.VideoPort > 65535 {
		return fmt.Errorf("pipeline.video_port must be a valid port")
	}
	if c.Pipeline.AudioPort <= 0 || c.Pipeline.AudioPort > 65535 {
		return fmt.Errorf("pipeline.audio_port must be a valid port")
	}
	if c.Pipeline.VideoPort == c.Pipeline.AudioPort {
		return fmt.Errorf("pipeline.video_port and pipeline.audio_port must differ")
	}
	if c.Pipeline.StopTimeout <= 0 {
		return fmt.Errorf("pipeline.stop_timeout must be positive")
	}

	if c.Admin.Enabled {
		if c.Admin.Address == "" {
			return fmt.Errorf("admin.address is required when admin is enabled")
		}
		if c.Admin.ReadTimeout <= 0 {
			return fmt.Errorf("admin.read_timeout must be positive")
		}
		if c.Admin.WriteTimeout <= 0 {
			return fmt.Errorf("admin.write_timeout must be positive")
		}
		if c.Admin.ShutdownTimeout <= 0 {
			return fmt.Errorf("admin.shutdown_timeout must be positive")
		}
		if c.Admin.SnapshotTTL < 0 {
			return fmt.Errorf("admin.snapshot_ttl cannot be negative")
		}
	}

	switch c.Actuation.Pointer {
	case "native", "bridge", "off":
	default:
		return fmt.Errorf("actuation.pointer must be one of native, bridge, off")
	}
	switch c.Actuation.Gamepad {
	case "bridge", "off":
	default:
		return fmt.Errorf("actuation.gamepad must be one of bridge, off")
	}
	if (c.Actuation.Pointer == "bridge" || c.Actuation.Gamepad == "bridge") && c.Actuation.BridgeURL == "" {
		return fmt.Errorf("actuation.bridge_url is required when a bridge target is selected")
	}
	if c.Actuation.DialTimeout <= 0 {
		return fmt.Errorf("actuation.dial_timeout must be positive")
	}

	if c.Settings.Path == "" {
		return fmt.Errorf("settings.path is required")
	}
	if c.Settings.BackupInterval < 0 {
		return fmt.Errorf("settings.backup_interval cannot be negative")
	}
	if c.Settings.BackupRetention < 0 {
		return fmt.Errorf("settings.backup_retention cannot be negative")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required when redis is enabled")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be positive when redis is enabled")
		}
		if c.Redis.TTL <= 0 {
			return fmt.Errorf("redis.ttl must be positive when redis is enabled")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url is required when tracing is enabled")
		}
		if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in (0, 1]")
		}
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be positive when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be positive when rate limiting is enabled")
		}
		if c.RateLimiting.Signal.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.signal.connections_per_minute must be positive when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads the YAML config at configPath, layered over defaults,
// then applies env overrides and validates the result. A missing file
// is not an error; the defaults stand.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Signal.Address = ":5600"
	cfg.Signal.RequirePIN = false
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.ShutdownTimeout = 10 * time.Second
	cfg.Signal.MaxMessageBytes = 64 * 1024

	cfg.Input.Address = ":7777"
	cfg.Input.PeerLimit = 1
	cfg.Input.IdleTimeout = 30 * time.Second
	cfg.Input.PollInterval = 10 * time.Millisecond
	cfg.Input.WindowSize = 128

	cfg.Discovery.Enabled = true
	cfg.Discovery.BroadcastAddress = "255.255.255.255:55555"
	cfg.Discovery.Interval = 2 * time.Second
	cfg.Discovery.ServiceTag = "GAME_STREAM_SERVER"

	cfg.Pipeline.Launcher = "gst-launch-1.0"
	cfg.Pipeline.VideoPort = 5601
	cfg.Pipeline.AudioPort = 5602
	cfg.Pipeline.StopTimeout = 5 * time.Second

	cfg.Admin.Enabled = true
	cfg.Admin.Address = "127.0.0.1:5605"
	cfg.Admin.PINGuard = false
	cfg.Admin.ReadTimeout = 10 * time.Second
	cfg.Admin.WriteTimeout = 10 * time.Second
	cfg.Admin.ShutdownTimeout = 10 * time.Second
	cfg.Admin.SnapshotTTL = 250 * time.Millisecond

	cfg.Actuation.Pointer = "native"
	cfg.Actuation.Gamepad = "off"
	cfg.Actuation.BridgeURL = "ws://127.0.0.1:8642/ws/hid"
	cfg.Actuation.DialTimeout = 5 * time.Second

	cfg.Settings.Path = "config.json"
	cfg.Settings.BackupDir = "backups"
	cfg.Settings.BackupInterval = 10 * time.Minute
	cfg.Settings.BackupRetention = 5

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.KeyPrefix = "playcast:"
	cfg.Redis.TTL = 5 * time.Minute

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0
	cfg.Tracing.Environment = "development"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.Signal.ConnectionsPerMinute = 60

	return cfg
}

// applyEnvOverrides lets a handful of PLAYCAST_* variables beat both
// the defaults and the file, for container deployments.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("PLAYCAST_SIGNAL_ADDRESS"); addr != "" {
		c.Signal.Address = addr
	}
	if addr := os.Getenv("PLAYCAST_INPUT_ADDRESS"); addr != "" {
		c.Input.Address = addr
	}
	if addr := os.Getenv("PLAYCAST_ADMIN_ADDRESS"); addr != "" {
		c.Admin.Address = addr
	}
	if level := os.Getenv("PLAYCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv("PLAYCAST_SETTINGS_PATH"); path != "" {
		c.Settings.Path = path
	}
}
