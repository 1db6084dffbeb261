// Package config loads the service configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve in minimal images

	"github.com/spf13/viper"
)

const envPrefix = "UPTIME"

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Uptime   UptimeConfig   `mapstructure:"uptime"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	// SeedFile is an optional JSON roster imported at startup.
	SeedFile string `mapstructure:"seed_file"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ScheduleConfig selects the cycle cadence. Cron wins over Preset, which
// wins over IntervalMinutes.
type ScheduleConfig struct {
	Cron            string `mapstructure:"cron"`
	Preset          string `mapstructure:"preset"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	RunOnStart      bool   `mapstructure:"run_on_start"`
}

type ProbeConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RedirectLimit int           `mapstructure:"redirect_limit"`
	VerifyTLS     bool          `mapstructure:"verify_tls"`
}

type UptimeConfig struct {
	WindowDays int    `mapstructure:"window_days"`
	Timezone   string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	// Driver is one of mysql, postgres, sqlite or memory.
	Driver             string        `mapstructure:"driver"`
	DSN                string        `mapstructure:"dsn"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	LogQueries         bool          `mapstructure:"log_queries"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// RedisConfig enables the stats cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level    string   `mapstructure:"level"`
	Console  bool     `mapstructure:"console"`
	Files    []string `mapstructure:"files"`
	Internal bool     `mapstructure:"internal"`
}

// Load reads path (optional when empty) and applies UPTIME_* environment
// overrides, e.g. UPTIME_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Probe.Timeout <= 0 {
		return fmt.Errorf("invalid probe timeout: %s", c.Probe.Timeout)
	}
	if c.Probe.RedirectLimit < 0 {
		return fmt.Errorf("invalid redirect limit: %d", c.Probe.RedirectLimit)
	}
	if c.Uptime.WindowDays <= 0 {
		return fmt.Errorf("invalid uptime window: %d days", c.Uptime.WindowDays)
	}
	if _, err := time.LoadLocation(c.Uptime.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Uptime.Timezone, err)
	}
	if c.Schedule.IntervalMinutes < 0 {
		return fmt.Errorf("invalid interval: %d minutes", c.Schedule.IntervalMinutes)
	}
	switch c.Database.Driver {
	case "memory":
	case "sqlite", "mysql", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Uptime.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("schedule.cron", "")
	v.SetDefault("schedule.preset", "")
	v.SetDefault("schedule.interval_minutes", 5)
	v.SetDefault("schedule.run_on_start", true)

	v.SetDefault("probe.timeout", 30*time.Second)
	v.SetDefault("probe.redirect_limit", 5)
	v.SetDefault("probe.verify_tls", false)

	v.SetDefault("uptime.window_days", 30)
	v.SetDefault("uptime.timezone", "UTC")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.log_queries", false)
	v.SetDefault("database.slow_query_threshold", time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.files", []string{})
	v.SetDefault("log.internal", false)

	v.SetDefault("seed_file", "")
}
