package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of the engine.
// Values loaded from YAML can be overridden through environment variables.
type Config struct {
	App struct {
		Name string `yaml:"name"`
	} `yaml:"app"`

	Market struct {
		WSURL string `yaml:"ws_url"`
	} `yaml:"market"`

	Engine struct {
		MatchIntervalMS     int `yaml:"match_interval_ms"`
		ReconnectDelayMS    int `yaml:"reconnect_delay_ms"`
		ReconcileIntervalMS int `yaml:"reconcile_interval_ms"`
	} `yaml:"engine"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTLSec   int    `yaml:"ttl_sec"`
	} `yaml:"redis"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment overrides
// and defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Market.WSURL == "" || (!strings.HasPrefix(c.Market.WSURL, "ws://") && !strings.HasPrefix(c.Market.WSURL, "wss://")) {
		return fmt.Errorf("invalid market WS URL: %s", c.Market.WSURL)
	}
	if c.Engine.MatchIntervalMS < 0 {
		return fmt.Errorf("match interval must not be negative")
	}
	if c.Engine.ReconnectDelayMS <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.Engine.ReconcileIntervalMS <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis enabled but no addr configured")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = AppName
	}
	if c.Engine.MatchIntervalMS == 0 {
		c.Engine.MatchIntervalMS = 150
	}
	if c.Engine.ReconnectDelayMS == 0 {
		c.Engine.ReconnectDelayMS = 2000
	}
	if c.Engine.ReconcileIntervalMS == 0 {
		c.Engine.ReconcileIntervalMS = 2000
	}
	if c.Redis.TTLSec == 0 {
		c.Redis.TTLSec = 90
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// MatchInterval is the minimum spacing between matching passes per symbol.
func (c *Config) MatchInterval() time.Duration {
	return time.Duration(c.Engine.MatchIntervalMS) * time.Millisecond
}

// ReconnectDelay is the fixed wait before a worker redials its stream.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Engine.ReconnectDelayMS) * time.Millisecond
}

// ReconcileInterval is the cadence of the worker manager's reconciliation.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Engine.ReconcileIntervalMS) * time.Millisecond
}

// QuoteTTL is the redis expiry for cached top-of-book quotes.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Redis.TTLSec) * time.Second
}

// overrideWithEnv lets environment variables take precedence over the file,
// so credentials never need to live in the config.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("PAPERTRADE_MARKET_WS_URL"); v != "" {
		cfg.Market.WSURL = v
	}
	if v := os.Getenv("PAPERTRADE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PAPERTRADE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("PAPERTRADE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}
