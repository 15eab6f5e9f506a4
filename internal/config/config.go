// Package config loads process configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// JWTConfig holds token signing parameters.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiry-hours"`
}

// Expiry returns the configured token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	hours := c.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// LogConfig holds logging output parameters.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// SMTPConfig holds outbound mail parameters for verification emails.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	From        string `yaml:"from"`
	FrontendURL string `yaml:"frontend-url"`
}

// Enabled reports whether mail sending is configured.
func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

// CatalogConfig holds model catalog sync parameters.
type CatalogConfig struct {
	FeedPath string `yaml:"feed-path"`
	Cron     string `yaml:"cron"`
}

// Config is the root configuration document.
type Config struct {
	Addr        string        `yaml:"addr"`
	DatabaseDSN string        `yaml:"database-dsn"`
	RedisURL    string        `yaml:"redis-url"`
	JWT         JWTConfig     `yaml:"jwt"`
	Log         LogConfig     `yaml:"log"`
	SMTP        SMTPConfig    `yaml:"smtp"`
	Catalog     CatalogConfig `yaml:"catalog"`
}

// Load reads the config file at path, if present, and applies environment
// overrides. A missing file is not an error; env-only deployments are
// supported.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Addr: ":8000",
		JWT:  JWTConfig{ExpiryHours: 24},
		Log:  LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Catalog: CatalogConfig{
			Cron: "0 */6 * * *",
		},
	}

	if strings.TrimSpace(path) != "" {
		data, errRead := os.ReadFile(path)
		switch {
		case errRead == nil:
			if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
			}
		case os.IsNotExist(errRead):
			// fall through to env overrides
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
	}

	applyEnvOverrides(cfg)

	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return nil, fmt.Errorf("config: database dsn is required (set DATABASE_DSN)")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: jwt secret is required (set JWT_SECRET)")
	}
	return cfg, nil
}

// applyEnvOverrides maps well-known environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ADDR")); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Addr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		cfg.JWT.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("JWT_EXPIRY_HOURS")); v != "" {
		if hours, errParse := strconv.Atoi(v); errParse == nil && hours > 0 {
			cfg.JWT.ExpiryHours = hours
		}
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv("SMTP_HOST")); v != "" {
		cfg.SMTP.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		if port, errParse := strconv.Atoi(v); errParse == nil && port > 0 {
			cfg.SMTP.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("SMTP_USERNAME")); v != "" {
		cfg.SMTP.Username = v
	}
	if v := strings.TrimSpace(os.Getenv("SMTP_PASSWORD")); v != "" {
		cfg.SMTP.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("SMTP_FROM")); v != "" {
		cfg.SMTP.From = v
	}
	if v := strings.TrimSpace(os.Getenv("FRONTEND_URL")); v != "" {
		cfg.SMTP.FrontendURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_FEED_PATH")); v != "" {
		cfg.Catalog.FeedPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_SYNC_CRON")); v != "" {
		cfg.Catalog.Cron = v
	}
}
