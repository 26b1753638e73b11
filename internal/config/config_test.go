package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Escalation.Interval)
	assert.Equal(t, 48*time.Hour, cfg.Escalation.MediumAfter)
	assert.Equal(t, 120*time.Hour, cfg.Escalation.HighAfter)
	assert.True(t, cfg.Escalation.IncludeClosed)
	assert.Equal(t, "ticker", cfg.Escalation.Backend)
	assert.False(t, cfg.Lifecycle.StrictTransitions)
	assert.Equal(t, 3, cfg.Lifecycle.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Len(t, cfg.Classification.CivicLabels, 15)
	assert.Contains(t, cfg.Classification.CivicLabels, "Garbage")
	assert.Equal(t, "local", cfg.Dashboard.Relay)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_JWT_SECRET", testSecret)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:test.db")
	t.Setenv("ESCALATION_MEDIUM_AFTER", "2h")
	t.Setenv("ESCALATION_HIGH_AFTER", "4h")
	t.Setenv("LIFECYCLE_STRICT_TRANSITIONS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.ConnString())
	assert.Equal(t, 2*time.Hour, cfg.Escalation.MediumAfter)
	assert.Equal(t, 4*time.Hour, cfg.Escalation.HighAfter)
	assert.True(t, cfg.Lifecycle.StrictTransitions)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("AUTH_JWT_SECRET", testSecret)

	yaml := []byte(`
escalation:
  interval: 30m
  include_closed: false
dashboard:
  relay: redis
  send_buffer: 8
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Escalation.Interval)
	assert.False(t, cfg.Escalation.IncludeClosed)
	assert.Equal(t, "redis", cfg.Dashboard.Relay)
	assert.Equal(t, 8, cfg.Dashboard.SendBuffer)
}

func validConfig() Config {
	return Config{
		Database:   DatabaseConfig{Driver: "postgres"},
		Escalation: EscalationConfig{Interval: time.Hour, MediumAfter: 48 * time.Hour, HighAfter: 120 * time.Hour, Backend: "ticker"},
		Dashboard:  DashboardConfig{Relay: "local"},
		Auth:       AuthConfig{JWTSecret: testSecret},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"river needs postgres", func(c *Config) {
			c.Database.Driver = "sqlite"
			c.Escalation.Backend = "river"
		}, "requires database.driver postgres"},
		{"thresholds inverted", func(c *Config) { c.Escalation.HighAfter = time.Hour }, "high_after"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }, "telegram.token"},
		{"unknown relay", func(c *Config) { c.Dashboard.Relay = "kafka" }, "dashboard.relay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConnString_FromFields(t *testing.T) {
	c := DatabaseConfig{Driver: "postgres", User: "u", Password: "p", Host: "db", Port: 5432, Name: "n"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", c.ConnString())
}
