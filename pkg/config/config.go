package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Capture struct {
		TargetFPS int `yaml:"target_fps"`
	} `yaml:"capture"`

	Tiers struct {
		Min int `yaml:"min"`
		Max int `yaml:"max"`
	} `yaml:"tiers"`

	Stream struct {
		SendTimeout  time.Duration `yaml:"send_timeout"`
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
	} `yaml:"stream"`

	Adaptive struct {
		LowFPS        float64       `yaml:"low_fps"`
		HighFPS       float64       `yaml:"high_fps"`
		Step          int           `yaml:"step"`
		Window        time.Duration `yaml:"window"`
		CheckInterval time.Duration `yaml:"check_interval"`
	} `yaml:"adaptive"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled              bool `yaml:"enabled"`
		ConnectionsPerMinute int  `yaml:"connections_per_minute"`
		Burst                int  `yaml:"burst"`
		MaxConcurrent        int  `yaml:"max_concurrent_connections"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Capture
	if c.Capture.TargetFPS <= 0 {
		return fmt.Errorf("capture.target_fps must be > 0")
	}

	// Tiers
	if c.Tiers.Min <= 0 {
		return fmt.Errorf("tiers.min must be > 0")
	}
	if c.Tiers.Min > c.Tiers.Max {
		return fmt.Errorf("tiers.min must be <= tiers.max")
	}
	if c.Tiers.Max > 100 {
		return fmt.Errorf("tiers.max must be <= 100")
	}

	// Stream
	if c.Stream.SendTimeout <= 0 {
		return fmt.Errorf("stream.send_timeout must be > 0")
	}
	if c.Stream.PingInterval <= 0 {
		return fmt.Errorf("stream.ping_interval must be > 0")
	}
	if c.Stream.PongTimeout <= c.Stream.PingInterval {
		return fmt.Errorf("stream.pong_timeout must be > stream.ping_interval")
	}

	// Adaptive
	if c.Adaptive.LowFPS <= 0 {
		return fmt.Errorf("adaptive.low_fps must be > 0")
	}
	if c.Adaptive.HighFPS <= c.Adaptive.LowFPS {
		return fmt.Errorf("adaptive.high_fps must be > adaptive.low_fps")
	}
	if c.Adaptive.Step <= 0 {
		return fmt.Errorf("adaptive.step must be > 0")
	}
	if c.Adaptive.Window <= 0 {
		return fmt.Errorf("adaptive.window must be > 0")
	}
	if c.Adaptive.CheckInterval <= 0 {
		return fmt.Errorf("adaptive.check_interval must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":6732"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Capture.TargetFPS = 34

	cfg.Tiers.Min = 30
	cfg.Tiers.Max = 95

	cfg.Stream.SendTimeout = 5 * time.Second
	cfg.Stream.PingInterval = 30 * time.Second
	cfg.Stream.PongTimeout = 60 * time.Second

	cfg.Adaptive.LowFPS = 28
	cfg.Adaptive.HighFPS = 32
	cfg.Adaptive.Step = 5
	cfg.Adaptive.Window = 5 * time.Second
	cfg.Adaptive.CheckInterval = time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.ConnectionsPerMinute = 60
	cfg.RateLimiting.Burst = 20
	cfg.RateLimiting.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CAMCAST_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("CAMCAST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if fps := os.Getenv("CAMCAST_CAPTURE_TARGET_FPS"); fps != "" {
		if n, err := strconv.Atoi(fps); err == nil {
			c.Capture.TargetFPS = n
		}
	}
	if url := os.Getenv("CAMCAST_JAEGER_URL"); url != "" {
		c.Tracing.JaegerURL = url
	}
}
