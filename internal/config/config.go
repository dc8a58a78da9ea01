// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

// Package config loads service configuration from a YAML file, command
// line flags, and the environment.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds all service configuration.
// Precedence: defaults < config file < command line flags.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Mail     MailConfig     `koanf:"mail"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`

	// BaseURL is the externally reachable prefix used in reset links.
	BaseURL string `koanf:"base_url"`

	// RequestTimeout bounds each request, store calls included.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	// URL is the connection string. Falls back to the DATABASE_URL
	// environment variable when empty.
	URL string `koanf:"url"`
}

// MailConfig configures outbound mail. With an empty APIKey the service
// logs messages instead of delivering them.
type MailConfig struct {
	SendGridAPIKey string `koanf:"sendgrid_api_key"`
	SenderName     string `koanf:"sender_name"`
	SenderAddr     string `koanf:"sender_addr"`
}

// MetricsConfig configures the observability listener.
// An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"` // "json" or "text"
	Level  string `koanf:"level"`  // "debug", "info", "warn", "error"
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"base-url":        "server.base_url",
	"request-timeout": "server.request_timeout",
	"database-url":    "database.url",
	"metrics-addr":    "metrics.addr",
	"log-format":      "log.format",
	"log-level":       "log.level",
}

// Default values.
const (
	defaultAddr              = "localhost:3000"
	defaultMetricsAddr       = "127.0.0.1:9100"
	defaultRequestTimeout    = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = time.Minute
	defaultLogFormat         = "json"
	defaultLogLevel          = "info"
	defaultSenderName        = "Passkeep"
)

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{}
	cfg.Server.Addr = defaultAddr
	cfg.Server.BaseURL = "http://" + defaultAddr
	cfg.Server.RequestTimeout = defaultRequestTimeout
	cfg.Server.ReadHeaderTimeout = defaultReadHeaderTimeout
	cfg.Server.ReadTimeout = defaultReadTimeout
	cfg.Server.WriteTimeout = defaultWriteTimeout
	cfg.Server.IdleTimeout = defaultIdleTimeout
	cfg.Metrics.Addr = defaultMetricsAddr
	cfg.Log.Format = defaultLogFormat
	cfg.Log.Level = defaultLogLevel
	cfg.Mail.SenderName = defaultSenderName
	return cfg
}

// Load builds the configuration from the optional YAML file at path and
// the given flag set. Flags override file values only when set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Merge only flags the user actually set, so unset flag defaults
		// do not clobber file values or built-in defaults.
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			if mapped, ok := flagKeys[f.Name]; ok {
				return mapped, posflag.FlagVal(flags, f)
			}
			return "", nil // flag does not correspond to a config key
		})
		if err := k.Load(p, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal").
			Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Server.BaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.base_url is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (set database.url or DATABASE_URL)")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Mail.SendGridAPIKey != "" && c.Mail.SenderAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("mail.sender_addr is required when sendgrid is configured")
	}
	return nil
}
