package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port                  int      `yaml:"port"`
		APIKeys               []string `yaml:"api_keys"`
		RateLimitPerMinute    int      `yaml:"rate_limit_per_minute"`
		RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`

	Salon struct {
		Path                 string `yaml:"path"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"salon"`

	Booking struct {
		GranularityMinutes int    `yaml:"granularity_minutes"`
		MinBlockMinutes    int    `yaml:"min_block_minutes"`
		MaxAdvanceDays     int    `yaml:"max_advance_days"`
		ListWorkers        int    `yaml:"list_workers"`
		LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
		CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
		Timezone           string `yaml:"timezone"`
	} `yaml:"booking"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	// Unset ${ENV} placeholders leave empty keys behind.
	c.Server.APIKeys = slices.DeleteFunc(c.Server.APIKeys, func(k string) bool { return k == "" })

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerMinute == 0 {
		c.Server.RateLimitPerMinute = 120
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/salonbook.db"
	}
	if c.Salon.Path == "" {
		c.Salon.Path = "configs/salon.yaml"
	}
	if c.Salon.WatchIntervalSeconds == 0 {
		c.Salon.WatchIntervalSeconds = 30
	}
	if c.Booking.GranularityMinutes <= 0 {
		c.Booking.GranularityMinutes = 15
	}
	if c.Booking.MinBlockMinutes <= 0 {
		c.Booking.MinBlockMinutes = 15
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 60
	}
	if c.Booking.ListWorkers <= 0 {
		c.Booking.ListWorkers = 4
	}
	if c.Booking.LockTTLSeconds <= 0 {
		c.Booking.LockTTLSeconds = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// RequestTimeout bounds a single API request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Booking.LockTTLSeconds) * time.Second
}

// CacheTTL is zero when the catalog cache is disabled.
func (c *Config) CacheTTL() time.Duration {
	if c.Booking.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Booking.CacheTTLSeconds) * time.Second
}

func (c *Config) SalonWatchInterval() time.Duration {
	return time.Duration(c.Salon.WatchIntervalSeconds) * time.Second
}

// Location returns the wall-clock zone used for "today"; time.Local when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Booking.Timezone)
}
