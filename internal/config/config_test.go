// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passkeep/passkeep/internal/config"
	"github.com/passkeep/passkeep/pkg/errutil"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func serveFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.String("base-url", "", "")
	flags.Duration("request-timeout", 0, "")
	flags.String("database-url", "", "")
	flags.String("metrics-addr", "", "")
	flags.String("log-format", "", "")
	flags.String("log-level", "", "")
	return flags
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply without file or flags", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/passkeep")

		cfg, err := config.Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost:3000", cfg.Server.Addr)
		assert.Equal(t, "http://localhost:3000", cfg.Server.BaseURL)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
		assert.Equal(t, "postgres://localhost/passkeep", cfg.Database.URL)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  addr: ":8080"
  base_url: "https://accounts.example.com"
  request_timeout: 30s
database:
  url: "postgres://db.internal/passkeep"
log:
  format: text
  level: debug
`)

		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "https://accounts.example.com", cfg.Server.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
		assert.Equal(t, "postgres://db.internal/passkeep", cfg.Database.URL)
		assert.Equal(t, "text", cfg.Log.Format)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("flags override file values", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  addr: ":8080"
database:
  url: "postgres://db.internal/passkeep"
`)

		flags := serveFlags()
		require.NoError(t, flags.Set("addr", ":9090"))
		require.NoError(t, flags.Set("log-format", "text"))

		cfg, err := config.Load(path, flags)
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, "text", cfg.Log.Format)
	})

	t.Run("unset flags do not clobber file values", func(t *testing.T) {
		path := writeConfigFile(t, `
server:
  addr: ":8080"
database:
  url: "postgres://db.internal/passkeep"
`)

		cfg, err := config.Load(path, serveFlags())
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := config.Load("/nonexistent/config.yaml", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	})

	t.Run("missing database url is rejected", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")

		_, err := config.Load("", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Database.URL = "postgres://localhost/passkeep"
		return cfg
	}

	t.Run("default with database url is valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty addr is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Addr = ""
		err := cfg.Validate()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("empty base url is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Server.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown log format is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Log.Format = "xml"
		assert.Error(t, cfg.Validate())
	})

	t.Run("sendgrid key without sender address is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Mail.SendGridAPIKey = "SG.key"
		cfg.Mail.SenderAddr = ""
		assert.Error(t, cfg.Validate())
	})
}
