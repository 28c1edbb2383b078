// Package config loads server configuration from the environment using
// envdecode struct tags, mirroring n8n's env-style configuration surface.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joeshaw/envdecode"
)

// TenancyMode selects how inbound requests map to upstream n8n instances.
type TenancyMode string

const (
	// TenancyOff serves a single configured n8n instance.
	TenancyOff TenancyMode = "off"
	// TenancyPerInstance gives each distinct instance context its own session.
	TenancyPerInstance TenancyMode = "per-instance"
	// TenancyShared lets one session switch instance context per request.
	TenancyShared TenancyMode = "shared"
)

// Environment selects error verbosity.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvDevelopment Environment = "development"
)

// Config is the full environment-driven configuration.
type Config struct {
	// Port the HTTP listener binds to. ENV: PORT
	Port int `env:"PORT,default=3000"`
	// AuthToken is the bearer token required on /mcp. ENV: AUTH_TOKEN
	AuthToken string `env:"AUTH_TOKEN"`

	// N8nAPIURL is the default upstream n8n base URL. ENV: N8N_API_URL
	N8nAPIURL string `env:"N8N_API_URL"`
	// N8nAPIKey is the default upstream API key. ENV: N8N_API_KEY
	N8nAPIKey string `env:"N8N_API_KEY"`

	// MaxSessions caps concurrently live sessions. ENV: MAX_CONCURRENT_SESSIONS
	MaxSessions int `env:"MAX_CONCURRENT_SESSIONS,default=100"`
	// SessionTimeout is the idle lifetime of a session. ENV: SESSION_TIMEOUT
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT,default=30m"`
	// SweepInterval is how often expired sessions are evicted. ENV: SESSION_SWEEP_INTERVAL
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL,default=5m"`

	// Mode is the multi-tenant mode. ENV: MULTI_TENANT_MODE
	Mode TenancyMode `env:"MULTI_TENANT_MODE,default=off"`
	// Env controls client-facing error verbosity. ENV: ENVIRONMENT
	Env Environment `env:"ENVIRONMENT,default=production"`
	// LogLevel is one of debug, info, warn, error. ENV: LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load populates a Config from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envdecode cannot express.
func (c *Config) Validate() error {
	switch c.Mode {
	case TenancyOff, TenancyPerInstance, TenancyShared:
	default:
		return fmt.Errorf("invalid MULTI_TENANT_MODE %q (want off, per-instance, or shared)", c.Mode)
	}
	switch c.Env {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("invalid ENVIRONMENT %q (want production or development)", c.Env)
	}
	if c.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is required")
	}
	if c.Mode == TenancyOff && (c.N8nAPIURL == "" || c.N8nAPIKey == "") {
		return fmt.Errorf("N8N_API_URL and N8N_API_KEY are required when MULTI_TENANT_MODE=off")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_SESSIONS must be positive, got %d", c.MaxSessions)
	}
	if c.SessionTimeout <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT and SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// IsDevelopment reports whether detailed error messages may reach clients.
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
