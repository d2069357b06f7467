// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrAccessKeyRequired is returned when KODO_ACCESS_KEY is not set.
	ErrAccessKeyRequired = errors.New("config: KODO_ACCESS_KEY is required")
	// ErrSecretKeyRequired is returned when KODO_SECRET_KEY is not set.
	ErrSecretKeyRequired = errors.New("config: KODO_SECRET_KEY is required")
	// ErrBucketRequired is returned when KODO_BUCKET is not set.
	ErrBucketRequired = errors.New("config: KODO_BUCKET is required")
	// ErrDomainRequired is returned when KODO_DOMAIN is not set.
	ErrDomainRequired = errors.New("config: KODO_DOMAIN is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage provider account
	AccessKey string `env:"KODO_ACCESS_KEY, required" json:"-"` // Masked in JSON
	SecretKey string `env:"KODO_SECRET_KEY, required" json:"-"` // Masked in JSON
	Bucket    string `env:"KODO_BUCKET, required" json:"bucket"`
	// Domain is the public download domain for uploaded objects.
	Domain string `env:"KODO_DOMAIN, required" json:"domain"`

	// Persistent processing pipeline
	Pipeline  string `env:"KODO_PIPELINE" json:"pipeline,omitempty"`
	NotifyURL string `env:"PERSISTENT_NOTIFY_URL" json:"notify_url,omitempty"`

	// Base upload policy. SaveKey placeholders are resolved by the provider
	// at upload time.
	PolicyScope       string `env:"POLICY_SCOPE" json:"policy_scope,omitempty"`
	PolicySaveKey     string `env:"POLICY_SAVE_KEY, default=$(year)$(mon)/$(etag)$(ext)" json:"policy_save_key"`
	PolicyExpires     int    `env:"POLICY_EXPIRES, default=3600" json:"policy_expires"`
	PolicyInsertOnly  int    `env:"POLICY_INSERT_ONLY, default=1" json:"policy_insert_only"`
	PolicyFsizeLimit  int64  `env:"POLICY_FSIZE_LIMIT, default=104857600" json:"policy_fsize_limit"`
	CallbackURL       string `env:"POLICY_CALLBACK_URL" json:"callback_url,omitempty"`
	CallbackHost      string `env:"POLICY_CALLBACK_HOST" json:"callback_host,omitempty"`
	CallbackBody      string `env:"POLICY_CALLBACK_BODY" json:"callback_body,omitempty"`
	CallbackBodyType  string `env:"POLICY_CALLBACK_BODY_TYPE, default=application/x-www-form-urlencoded" json:"callback_body_type"`
	CallbackFetchKey  int    `env:"POLICY_CALLBACK_FETCH_KEY, default=0" json:"callback_fetch_key"`

	// Optional MySQL settings; uses in-memory repositories when empty.
	MySQLDSN string `env:"MYSQL_DSN" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// MySQLEnabled returns true if MySQL configuration is provided.
func (c *Config) MySQLEnabled() bool {
	return c.MySQLDSN != ""
}

// BasePolicy builds the static base upload policy as a mergeable map.
// Caller-supplied overrides are merged over it at token issuance time.
func (c *Config) BasePolicy() map[string]any {
	scope := c.PolicyScope
	if scope == "" {
		scope = c.Bucket
	}
	policy := map[string]any{
		"scope":      scope,
		"saveKey":    c.PolicySaveKey,
		"expires":    c.PolicyExpires,
		"insertOnly": c.PolicyInsertOnly,
		"fsizeLimit": c.PolicyFsizeLimit,
	}
	if c.CallbackURL != "" {
		policy["callbackUrl"] = c.CallbackURL
		policy["callbackHost"] = c.CallbackHost
		policy["callbackBody"] = c.CallbackBody
		policy["callbackBodyType"] = c.CallbackBodyType
		policy["callbackFetchKey"] = c.CallbackFetchKey
	}
	return policy
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "KODO_ACCESS_KEY") {
			return nil, ErrAccessKeyRequired
		}
		if strings.Contains(err.Error(), "KODO_SECRET_KEY") {
			return nil, ErrSecretKeyRequired
		}
		if strings.Contains(err.Error(), "KODO_BUCKET") {
			return nil, ErrBucketRequired
		}
		if strings.Contains(err.Error(), "KODO_DOMAIN") {
			return nil, ErrDomainRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.AccessKey == "" {
		return ErrAccessKeyRequired
	}
	if c.SecretKey == "" {
		return ErrSecretKeyRequired
	}
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	if c.Domain == "" {
		return ErrDomainRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, Bucket: %s, Domain: %s, Pipeline: %s, NotifyURL: %s, PolicySaveKey: %s, PolicyExpires: %d, MySQLEnabled: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Bucket,
		c.Domain,
		c.Pipeline,
		c.NotifyURL,
		c.PolicySaveKey,
		c.PolicyExpires,
		c.MySQLEnabled(),
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
