// Package config provides configuration management.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (DATABASE_DSN, REDIS_ADDR, ESCALATION_INTERVAL, ...)
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Log            LogConfig            `mapstructure:"log"`
	Worker         WorkerConfig         `mapstructure:"worker"`
	Lifecycle      LifecycleConfig      `mapstructure:"lifecycle"`
	Escalation     EscalationConfig     `mapstructure:"escalation"`
	Classification ClassificationConfig `mapstructure:"classification"`
	Queue          QueueConfig          `mapstructure:"queue"`
	Dashboard      DashboardConfig      `mapstructure:"dashboard"`
	Auth           AuthConfig           `mapstructure:"auth"`
	OTP            OTPConfig            `mapstructure:"otp"`
	Telegram       TelegramConfig       `mapstructure:"telegram"`
	River          RiverConfig          `mapstructure:"river"`

	UploadsDir string `mapstructure:"uploads_dir"`
	Locale     string `mapstructure:"locale"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains the relational store settings.
type DatabaseConfig struct {
	// Driver is "postgres" (production) or "sqlite" (local runs).
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// ConnString returns the connection string.
// Priority: database.dsn > constructed from individual fields.
func (c DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" {
		return "trustline.db"
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, sslmode,
	)
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	// FanoutPoolSize is the capacity of each event sink's own pool.
	FanoutPoolSize  int `mapstructure:"fanout_pool_size"`
	GeneralPoolSize int `mapstructure:"general_pool_size"`
}

// LifecycleConfig controls the complaint state machine.
type LifecycleConfig struct {
	// StrictTransitions swaps the permissive any-to-any policy for an
	// adjacency table. Off by default.
	StrictTransitions bool `mapstructure:"strict_transitions"`
	MaxRetries        int  `mapstructure:"max_retries"`
}

// EscalationConfig controls the priority escalator.
type EscalationConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MediumAfter time.Duration `mapstructure:"medium_after"`
	HighAfter   time.Duration `mapstructure:"high_after"`
	// IncludeClosed keeps RESOLVED/REJECTED complaints in the scan.
	IncludeClosed bool `mapstructure:"include_closed"`
	// Backend is "ticker" (in-process loop) or "river" (periodic job, postgres only).
	Backend string `mapstructure:"backend"`
}

// ClassificationConfig contains the image classifier settings.
type ClassificationConfig struct {
	CivicLabels    []string      `mapstructure:"civic_labels"`
	GeminiEndpoint string        `mapstructure:"gemini_endpoint"`
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// QueueConfig contains the outbound message queue settings.
type QueueConfig struct {
	StreamPrefix string `mapstructure:"stream_prefix"`
	MaxLen       int64  `mapstructure:"max_len"`
}

// DashboardConfig contains live dashboard channel settings.
type DashboardConfig struct {
	// Relay is "local" (broadcast in-process) or "redis" (pub/sub across instances).
	Relay          string   `mapstructure:"relay"`
	RelayChannel   string   `mapstructure:"relay_channel"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SendBuffer     int      `mapstructure:"send_buffer"`
}

// AuthConfig contains token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// OTPConfig contains one-time password settings.
type OTPConfig struct {
	TTL    time.Duration `mapstructure:"ttl"`
	Length int           `mapstructure:"length"`
}

// TelegramConfig contains the optional admin alert sink settings.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

// RiverConfig contains River queue settings (escalation backend "river").
type RiverConfig struct {
	MaxWorkers int `mapstructure:"max_workers"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/trustline")

	// database.dsn -> DATABASE_DSN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	switch c.Escalation.Backend {
	case "ticker":
	case "river":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("escalation.backend river requires database.driver postgres")
		}
	default:
		return fmt.Errorf("escalation.backend must be ticker or river, got %q", c.Escalation.Backend)
	}
	switch c.Dashboard.Relay {
	case "local", "redis":
	default:
		return fmt.Errorf("dashboard.relay must be local or redis, got %q", c.Dashboard.Relay)
	}
	if c.Escalation.Interval <= 0 {
		return fmt.Errorf("escalation.interval must be positive")
	}
	if c.Escalation.HighAfter <= c.Escalation.MediumAfter {
		return fmt.Errorf("escalation.high_after must be greater than escalation.medium_after")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.token and telegram.chat_id are required when telegram.enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "trustline")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "trustline")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)

	// Redis
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Worker
	v.SetDefault("worker.fanout_pool_size", 64)
	v.SetDefault("worker.general_pool_size", 32)

	// Lifecycle
	v.SetDefault("lifecycle.strict_transitions", false)
	v.SetDefault("lifecycle.max_retries", DefaultTransitionRetries)

	// Escalation
	v.SetDefault("escalation.interval", DefaultEscalationInterval.String())
	v.SetDefault("escalation.medium_after", DefaultMediumAfter.String())
	v.SetDefault("escalation.high_after", DefaultHighAfter.String())
	v.SetDefault("escalation.include_closed", true)
	v.SetDefault("escalation.backend", "ticker")

	// Classification
	v.SetDefault("classification.civic_labels", DefaultCivicLabels)
	v.SetDefault("classification.gemini_endpoint",
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent")
	v.SetDefault("classification.gemini_api_key", "")
	v.SetDefault("classification.timeout", "15s")

	// Queue
	v.SetDefault("queue.stream_prefix", DefaultStreamPrefix)
	v.SetDefault("queue.max_len", DefaultStreamMaxLen)

	// Dashboard
	v.SetDefault("dashboard.relay", "local")
	v.SetDefault("dashboard.relay_channel", DefaultRelayChannel)
	v.SetDefault("dashboard.allowed_origins", []string{"*"})
	v.SetDefault("dashboard.send_buffer", DefaultDashboardSendBuffer)

	// Auth
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "72h")
	v.SetDefault("auth.issuer", "trustline")

	// OTP
	v.SetDefault("otp.ttl", DefaultOTPTTL.String())
	v.SetDefault("otp.length", DefaultOTPLength)

	// Telegram
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	// River
	v.SetDefault("river.max_workers", 2)

	v.SetDefault("uploads_dir", "uploads")
	v.SetDefault("locale", "en")
}
