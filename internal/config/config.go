package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration. Values come from an optional
// YAML file named by CONFIG_FILE, overridden by environment variables.
type Config struct {
	Port             int      `yaml:"port"`
	JWTSecret        string   `yaml:"jwt_secret"`
	DBDriver         string   `yaml:"db_driver"`
	DatabaseURL      string   `yaml:"database_url"`
	SQLitePath       string   `yaml:"sqlite_path"`
	EncryptionKey    string   `yaml:"encryption_key"`
	CORSOrigins      []string `yaml:"cors_origins"`
	LogLevel         string   `yaml:"log_level"`
	LogFormat        string   `yaml:"log_format"`
	RedisAddr        string   `yaml:"redis_addr"`
	ReminderSchedule string   `yaml:"reminder_schedule"`
	ExpirySchedule   string   `yaml:"expiry_schedule"`
	EmitDeleteEvents bool     `yaml:"emit_delete_events"`
	Timezone         string   `yaml:"timezone"`

	Location *time.Location `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		Port:             4001,
		DBDriver:         DriverPostgres,
		SQLitePath:       "tasktrack.db",
		CORSOrigins:      []string{"http://localhost:3000"},
		LogLevel:         "info",
		LogFormat:        "text",
		ReminderSchedule: "@every 1m",
		ExpirySchedule:   "@hourly",
		Timezone:         "UTC",
	}
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be a number, got %q", v)
		}
		c.Port = port
	}
	if v := os.Getenv("EMIT_DELETE_EVENTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EMIT_DELETE_EVENTS must be a boolean, got %q", v)
		}
		c.EmitDeleteEvents = b
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.EncryptionKey = getEnv("ENCRYPTION_KEY", c.EncryptionKey)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.ReminderSchedule = getEnv("REMINDER_SCHEDULE", c.ReminderSchedule)
	c.ExpirySchedule = getEnv("EXPIRY_SCHEDULE", c.ExpirySchedule)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	return nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	c.DBDriver = strings.ToLower(c.DBDriver)
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(c.EncryptionKey))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.Location = loc

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
	return nil
}

// NewLogger builds the application logger from the log settings.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
