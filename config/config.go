/*
Package config loads runtime configuration for the server and the CLI.

PRECEDENCE (lowest first):
  1. Defaults()
  2. YAML file: the explicit path, else STAFFING_CONFIG_PATH
  3. Environment: STAFFING_HOST, STAFFING_PORT, STAFFING_DB,
     STAFFING_ALLOWED_ORIGINS, STAFFING_LOG_LEVEL, STAFFING_LOG_FORMAT,
     STAFFING_INCLUDE_PROVISIONAL, STAFFING_ENDING_WITHIN_DAYS,
     STAFFING_ALERTS_ENABLED, STAFFING_ALERTS_INTERVAL

  The binaries call godotenv before Load, so a local .env feeds step 3.

EXAMPLE FILE:
  server:
    host: 127.0.0.1
    port: 8080
    allowed_origins: ["http://localhost:5173"]
  db:
    path: ./data/staffing.db
  log:
    level: debug
    format: text
  reports:
    include_provisional: true
    ending_within_days: 30
  alerts:
    enabled: true
    interval: 1h
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/warp/staffing-engine/generic"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Log     LogConfig     `yaml:"log"`
	Reports ReportsConfig `yaml:"reports"`
	Alerts  AlertsConfig  `yaml:"alerts"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// ReportsConfig holds presentation defaults, passed explicitly to the
// handlers and commands that render reports.
type ReportsConfig struct {
	IncludeProvisional bool `yaml:"include_provisional"`
	EndingWithinDays   int  `yaml:"ending_within_days"`
}

// AlertsConfig drives the background check for projects about to end.
type AlertsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		DB:  DBConfig{Path: "staffing.db"},
		Log: LogConfig{Level: "info", Format: "json"},
		Reports: ReportsConfig{
			IncludeProvisional: true,
			EndingWithinDays:   30,
		},
		Alerts: AlertsConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("STAFFING_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("STAFFING_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("STAFFING_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid STAFFING_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if origins := os.Getenv("STAFFING_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	if dbPath := os.Getenv("STAFFING_DB"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("STAFFING_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("STAFFING_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
	if v := os.Getenv("STAFFING_INCLUDE_PROVISIONAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STAFFING_INCLUDE_PROVISIONAL: %w", err)
		}
		cfg.Reports.IncludeProvisional = b
	}
	if v := os.Getenv("STAFFING_ENDING_WITHIN_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid STAFFING_ENDING_WITHIN_DAYS: %w", err)
		}
		cfg.Reports.EndingWithinDays = n
	}
	if v := os.Getenv("STAFFING_ALERTS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STAFFING_ALERTS_ENABLED: %w", err)
		}
		cfg.Alerts.Enabled = b
	}
	if v := os.Getenv("STAFFING_ALERTS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STAFFING_ALERTS_INTERVAL: %w", err)
		}
		cfg.Alerts.Interval = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range: %w", c.Server.Port, generic.ErrInvalidInput)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required: %w", generic.ErrInvalidInput)
	}
	if c.Reports.EndingWithinDays < 0 {
		return fmt.Errorf("reports.ending_within_days must not be negative: %w", generic.ErrInvalidInput)
	}
	if c.Alerts.Enabled && c.Alerts.Interval <= 0 {
		return fmt.Errorf("alerts.interval must be positive: %w", generic.ErrInvalidInput)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text: %w", c.Log.Format, generic.ErrInvalidInput)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
