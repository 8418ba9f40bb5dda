// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is an optional Redis address (host:port). When set, pending MFA
	// challenges are kept in Redis so multiple instances can share them; when
	// empty an in-process store is used.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SessionTTL is the sliding session lifetime (e.g. "168h" = 7d).
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SessionRememberTTL is the sliding lifetime when "remember me" was checked (e.g. "720h" = 30d).
	SessionRememberTTL string `mapstructure:"SESSION_REMEMBER_TTL"`
	// SessionAbsoluteTTL is the hard ceiling on session lifetime from the last full authentication (e.g. "720h").
	SessionAbsoluteTTL string `mapstructure:"SESSION_ABSOLUTE_TTL"`
	// SessionSweepInterval is how often expired sessions are bulk-deleted (e.g. "15m").
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// MaxSessionsPerUser caps concurrent sessions per user when the company has no own cap; default 3.
	MaxSessionsPerUser int `mapstructure:"MAX_SESSIONS_PER_USER"`

	// DeviceTrustTTLDays is how long a trusted device bypasses MFA (default 30).
	DeviceTrustTTLDays int `mapstructure:"DEVICE_TRUST_TTL_DAYS"`

	// MailAPIKey is the API key for the transactional mail provider. Required to send MFA codes.
	MailAPIKey string `mapstructure:"MAIL_API_KEY"`
	// MailBaseURL is the mail provider API base URL.
	MailBaseURL string `mapstructure:"MAIL_BASE_URL"`
	// MailSender is the From address for outbound mail.
	MailSender string `mapstructure:"MAIL_SENDER"`

	// ResetPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs password-reset tokens.
	ResetPrivateKey string `mapstructure:"RESET_PRIVATE_KEY"`
	// ResetPublicKey is the PEM-encoded public key or path to file.
	ResetPublicKey string `mapstructure:"RESET_PUBLIC_KEY"`
	// ResetTokenIssuer is the iss claim on reset tokens.
	ResetTokenIssuer string `mapstructure:"RESET_TOKEN_ISSUER"`
	// ResetTokenAudience is the aud claim on reset tokens.
	ResetTokenAudience string `mapstructure:"RESET_TOKEN_AUDIENCE"`
	// ResetTokenTTL is the reset token lifetime (e.g. "1h").
	ResetTokenTTL string `mapstructure:"RESET_TOKEN_TTL"`

	// OTLPEndpoint is the optional OTLP gRPC endpoint for telemetry export (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_TTL", "168h")          // 7d
	v.SetDefault("SESSION_REMEMBER_TTL", "720h") // 30d
	v.SetDefault("SESSION_ABSOLUTE_TTL", "720h") // 30d
	v.SetDefault("SESSION_SWEEP_INTERVAL", "15m")
	v.SetDefault("MAX_SESSIONS_PER_USER", 3)
	v.SetDefault("DEVICE_TRUST_TTL_DAYS", 30)
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("MAIL_BASE_URL", "")
	v.SetDefault("MAIL_SENDER", "no-reply@localhost")
	v.SetDefault("RESET_TOKEN_ISSUER", "tenantauth")
	v.SetDefault("RESET_TOKEN_AUDIENCE", "tenantauth-reset")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.MaxSessionsPerUser < 1 {
		return nil, errors.New("config: MAX_SESSIONS_PER_USER must be at least 1")
	}
	if cfg.DeviceTrustTTLDays < 1 {
		return nil, errors.New("config: DEVICE_TRUST_TTL_DAYS must be at least 1")
	}

	return &cfg, nil
}

func (c *Config) duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SlidingTTL parses SessionTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) SlidingTTL() time.Duration {
	return c.duration(c.SessionTTL, 168*time.Hour)
}

// RememberTTL parses SessionRememberTTL. Returns 720h if unset or invalid.
func (c *Config) RememberTTL() time.Duration {
	return c.duration(c.SessionRememberTTL, 720*time.Hour)
}

// AbsoluteTTL parses SessionAbsoluteTTL. Returns 720h if unset or invalid.
func (c *Config) AbsoluteTTL() time.Duration {
	return c.duration(c.SessionAbsoluteTTL, 720*time.Hour)
}

// SweepInterval parses SessionSweepInterval. Returns 15m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return c.duration(c.SessionSweepInterval, 15*time.Minute)
}

// ResetTTL parses ResetTokenTTL. Returns 1h if unset or invalid.
func (c *Config) ResetTTL() time.Duration {
	return c.duration(c.ResetTokenTTL, time.Hour)
}

// DeviceTrustTTL returns the device trust lifetime as a duration.
func (c *Config) DeviceTrustTTL() time.Duration {
	return time.Duration(c.DeviceTrustTTLDays) * 24 * time.Hour
}
