// Package config loads application settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"APP_ENV"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// Database
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`

	// Auth
	JWTSecret        string `mapstructure:"JWT_SECRET"`
	JWTAccessExpiry  string `mapstructure:"JWT_ACCESS_EXPIRY"`
	JWTRefreshExpiry string `mapstructure:"JWT_REFRESH_EXPIRY"`
	BcryptCost       int    `mapstructure:"BCRYPT_COST"`
	OTPTTLSeconds    int    `mapstructure:"OTP_TTL"`

	// Federated identity (OIDC). Disabled when FederatedIssuerURL is empty.
	FederatedIssuerURL string `mapstructure:"FEDERATED_ISSUER_URL"`
	FederatedClientID  string `mapstructure:"FEDERATED_CLIENT_ID"`

	// Stripe
	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	// Frontend links embedded in emails and Connect onboarding
	FrontendURL              string `mapstructure:"FRONTEND_URL"`
	FrontendPasswordResetURL string `mapstructure:"FRONTEND_PASSWORD_RESET_URL"`
	FrontendVerifyEmailURL   string `mapstructure:"FRONTEND_VERIFY_EMAIL_URL"`

	// Notifications fan-out. Disabled when NATSURL is empty.
	NATSURL string `mapstructure:"NATS_URL"`

	// Email. A logging mailer is used when SMTPHost is empty.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`

	SentryDSN        string `mapstructure:"SENTRY_DSN"`
	LogRetentionDays int    `mapstructure:"LOG_RETENTION_DAYS"`
}

// Load reads .env (if present), then the environment. Env vars win over .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "pampermomma")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "168h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", 600)
	v.SetDefault("FEDERATED_ISSUER_URL", "")
	v.SetDefault("FEDERATED_CLIENT_ID", "")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("FRONTEND_PASSWORD_RESET_URL", "")
	v.SetDefault("FRONTEND_VERIFY_EMAIL_URL", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "PamperMomma <no-reply@pampermomma.com>")
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("LOG_RETENTION_DAYS", 30)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Port == "" {
		return nil, errors.New("config: PORT must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.OTPTTLSeconds <= 0 {
		return nil, errors.New("config: OTP_TTL must be positive")
	}
	if cfg.FederatedIssuerURL != "" && cfg.FederatedClientID == "" {
		return nil, errors.New("config: FEDERATED_CLIENT_ID is required when FEDERATED_ISSUER_URL is set")
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.DBPassword == "" {
		return errors.New("DB_PASSWORD environment variable is required")
	}
	if c.IsProduction() && c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// AccessTTL returns 15m if JWTAccessExpiry is unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessExpiry, 15*time.Minute)
}

// RefreshTTL returns 168h if JWTRefreshExpiry is unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshExpiry, 168*time.Hour)
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLSeconds) * time.Second
}

func (c *Config) FederatedEnabled() bool {
	return c.FederatedIssuerURL != ""
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
