package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort   string `yaml:"port"`
	DatabaseType string `yaml:"database_type"`
	DatabasePath string `yaml:"database_path"`
	DatabaseURL  string `yaml:"database_url"`

	// Timezone anchors activity times of day when materializing events.
	Timezone string `yaml:"timezone"`

	IdentityJWTSecret    string `yaml:"identity_jwt_secret"`
	IdentityJWTPublicKey string `yaml:"identity_jwt_public_key"`
	IdentityIssuer       string `yaml:"identity_issuer"`
	WebhookSecret        string `yaml:"webhook_secret"`

	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	// AdvanceSchedule is a cron expression for the event advancement job.
	// Empty disables the job.
	AdvanceSchedule string `yaml:"advance_schedule"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	SESFromEmail string `yaml:"ses_from_email"`
	SESFromName  string `yaml:"ses_from_name"`
	AWSRegion    string `yaml:"aws_region"`
	AppBaseURL   string `yaml:"app_base_url"`
	EmailDebug   bool   `yaml:"email_debug"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServerPort:        "8080",
		DatabaseType:      "sqlite",
		DatabasePath:      "./rollcall.db",
		Timezone:          "UTC",
		RateLimitRequests: 120,
		RateLimitWindow:   time.Minute,
		AdvanceSchedule:   "*/15 * * * *",
		MetricsEnabled:    true,
		LogLevel:          "info",
		LogFormat:         "text",
		SESFromName:       "Rollcall",
		AWSRegion:         "us-east-1",
		AppBaseURL:        "http://localhost:8080",
	}
}

// Load reads configuration from .env, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays values from a YAML file onto the config
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.DatabaseType = getEnv("DATABASE_TYPE", c.DatabaseType)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.IdentityJWTSecret = getEnv("IDENTITY_JWT_SECRET", c.IdentityJWTSecret)
	c.IdentityJWTPublicKey = getEnv("IDENTITY_JWT_PUBLIC_KEY", c.IdentityJWTPublicKey)
	c.IdentityIssuer = getEnv("IDENTITY_ISSUER", c.IdentityIssuer)
	c.WebhookSecret = getEnv("WEBHOOK_SECRET", c.WebhookSecret)
	c.RateLimitRequests = getEnvInt("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimitWindow)
	c.AdvanceSchedule = getEnv("ADVANCE_SCHEDULE", c.AdvanceSchedule)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.SESFromEmail = getEnv("SES_FROM_EMAIL", c.SESFromEmail)
	c.SESFromName = getEnv("SES_FROM_NAME", c.SESFromName)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.AppBaseURL = getEnv("APP_BASE_URL", c.AppBaseURL)
	c.EmailDebug = getEnvBool("EMAIL_DEBUG", c.EmailDebug)
}

// Validate checks the settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3", "sqlite-pure", "":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for database type %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if c.IdentityJWTSecret == "" && c.IdentityJWTPublicKey == "" {
		return errors.New("IDENTITY_JWT_SECRET or IDENTITY_JWT_PUBLIC_KEY must be set")
	}

	if c.RateLimitRequests < 0 {
		return errors.New("RATE_LIMIT_REQUESTS must not be negative")
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
