// Package daemon manages the LevelUp daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig           `toml:"api"`
	Store         StoreConfig         `toml:"store"`
	Notifications NotificationsConfig `toml:"notifications"`
	Engagement    EngagementConfig    `toml:"engagement"`
	Logging       LoggingConfig       `toml:"logging"`
	Telemetry     TelemetryConfig     `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host" env:"LEVELUP_API_HOST" validate:"required"`
	Port           int      `toml:"port" env:"LEVELUP_API_PORT" validate:"min=1,max=65535"`
	CORSOrigins    []string `toml:"cors_origins" env:"LEVELUP_CORS_ORIGINS" envSeparator:","`
	ActivityRate   float64  `toml:"activity_rate" env:"LEVELUP_ACTIVITY_RATE" validate:"min=0"`
	ActivityBurst  int      `toml:"activity_burst" validate:"min=0"`
	RequestTimeout string   `toml:"request_timeout"`
}

// StoreConfig controls where the SQLite database lives.
type StoreConfig struct {
	Dir string `toml:"dir" env:"LEVELUP_DATA_DIR"`
}

// NotificationsConfig controls the playback queue and its sinks.
type NotificationsConfig struct {
	Spacing       string   `toml:"spacing" env:"LEVELUP_NOTIFY_SPACING"`
	Sinks         []string `toml:"sinks" env:"LEVELUP_NOTIFY_SINKS" envSeparator:"," validate:"dive,oneof=terminal log inbox"`
	Sound         bool     `toml:"sound" env:"LEVELUP_NOTIFY_SOUND"`
	Retention     string   `toml:"retention"`
	PruneInterval string   `toml:"prune_interval"`
	MaxBacklog    int      `toml:"max_backlog" validate:"min=0"`
}

// EngagementConfig controls scoring.
type EngagementConfig struct {
	// Timezone decides calendar days for streaks and the hour for
	// time-of-day bonuses.
	Timezone        string `toml:"timezone" env:"LEVELUP_TIMEZONE" validate:"required"`
	CatalogFile     string `toml:"catalog_file" env:"LEVELUP_CATALOG_FILE"`
	AutoCreateUsers bool   `toml:"auto_create_users" env:"LEVELUP_AUTO_CREATE_USERS"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVELUP_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `toml:"format" env:"LEVELUP_LOG_FORMAT" validate:"oneof=text json"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus" env:"LEVELUP_PROMETHEUS"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8470,
			CORSOrigins:    []string{"*"},
			ActivityRate:   5,
			ActivityBurst:  20,
			RequestTimeout: "30s",
		},
		Store: StoreConfig{
			Dir: levelupHome(),
		},
		Notifications: NotificationsConfig{
			Spacing:       "1s",
			Sinks:         []string{"log", "inbox"},
			Retention:     "168h",
			PruneInterval: "1h",
			MaxBacklog:    500,
		},
		Engagement: EngagementConfig{
			Timezone:        "UTC",
			AutoCreateUsers: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// Validate checks field constraints and that durations and the time zone
// parse.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, v := range map[string]string{
		"api.request_timeout":          c.API.RequestTimeout,
		"notifications.spacing":        c.Notifications.Spacing,
		"notifications.retention":      c.Notifications.Retention,
		"notifications.prune_interval": c.Notifications.PruneInterval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	if _, err := time.LoadLocation(c.Engagement.Timezone); err != nil {
		return fmt.Errorf("invalid config: engagement.timezone: %w", err)
	}
	return nil
}

// Location returns the configured scoring time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Engagement.Timezone)
}

// LoadConfig reads $LEVELUP_HOME/config.toml over the defaults, then
// applies environment overrides and validates the result.
func LoadConfig() (Config, error) {
	return LoadConfigFile(filepath.Join(levelupHome(), "config.toml"))
}

// LoadConfigFile is LoadConfig with an explicit path. A missing file is
// not an error.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $LEVELUP_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigFile(filepath.Join(levelupHome(), "config.toml"), cfg)
}

// SaveConfigFile writes the config to path.
func SaveConfigFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// NewLogger builds a logrus logger from the logging section.
func NewLogger(cfg LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// levelupHome returns the LevelUp data directory.
func levelupHome() string {
	if env := os.Getenv("LEVELUP_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".levelup")
}

// LevelUpHome is exported for use by other packages.
func LevelUpHome() string {
	return levelupHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
