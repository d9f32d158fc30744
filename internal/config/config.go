// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. Generating a report fans out to the Graph API, so the
	// write timeout is longer than a plain CRUD service would need.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting. The IP limit guards /api/v1 before authentication.
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitIPEnabled  bool `env:"RATE_LIMIT_IP_ENABLED" envDefault:"true"`
	RateLimitIPRPS      int  `env:"RATE_LIMIT_IP_RPS" envDefault:"20"`
	RateLimitIPBurst    int  `env:"RATE_LIMIT_IP_BURST" envDefault:"40"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Meta Graph API
	MetaGraphURL     string        `env:"META_GRAPH_URL" envDefault:"https://graph.facebook.com"`
	MetaAPIVersion   string        `env:"META_API_VERSION" envDefault:"v23.0"`
	MetaHTTPTimeout  time.Duration `env:"META_HTTP_TIMEOUT" envDefault:"15s"`
	MetaRateLimitRPS float64       `env:"META_RATE_LIMIT_RPS" envDefault:"10"`
	MetaAdLimit      int           `env:"META_AD_LIMIT" envDefault:"100"`
	MetaMaxPages     int           `env:"META_MAX_PAGES" envDefault:"10"`

	// Webhook delivery
	WebhookTimeout       time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"15s"`
	WebhookSigningSecret string        `env:"WEBHOOK_SIGNING_SECRET" envDefault:""`
	WebhookBlockPrivate  bool          `env:"WEBHOOK_BLOCK_PRIVATE" envDefault:"true"`
	WebhookRequireHTTPS  bool          `env:"WEBHOOK_REQUIRE_HTTPS" envDefault:"false"`

	// Scheduler
	SchedulerEnabled         bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	SchedulerTickInterval    time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"1m"`
	SchedulerMaxTickDuration time.Duration `env:"SCHEDULER_MAX_TICK_DURATION" envDefault:"4m"`
	SchedulerCooldown        time.Duration `env:"SCHEDULER_COOLDOWN" envDefault:"30m"`
	SchedulerWindow          time.Duration `env:"SCHEDULER_WINDOW" envDefault:"5m"`

	// Reports
	ReportCacheTTL       time.Duration `env:"REPORT_CACHE_TTL" envDefault:"10m"`
	ReportLocale         string        `env:"REPORT_LOCALE" envDefault:"pt-BR"`
	ReportCurrencySymbol string        `env:"REPORT_CURRENCY_SYMBOL" envDefault:"R$"`

	// Observability
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// APIKeyEnv is the environment label minted into new API keys.
func (c *Config) APIKeyEnv() string {
	if c.IsProduction() {
		return "live"
	}
	return "test"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate rejects settings the scheduler or clients cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.SchedulerTickInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_TICK_INTERVAL must be positive"))
	}
	if c.SchedulerWindow <= 0 {
		errs = append(errs, errors.New("SCHEDULER_WINDOW must be positive"))
	}
	// A cooldown shorter than the window would let one slot fire twice.
	if c.SchedulerCooldown <= c.SchedulerWindow {
		errs = append(errs, errors.New("SCHEDULER_COOLDOWN must exceed SCHEDULER_WINDOW"))
	}
	if c.SchedulerMaxTickDuration <= 0 {
		errs = append(errs, errors.New("SCHEDULER_MAX_TICK_DURATION must be positive"))
	}
	if c.MetaHTTPTimeout <= 0 || c.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("META_HTTP_TIMEOUT and WEBHOOK_TIMEOUT must be positive"))
	}
	if c.MetaAdLimit <= 0 {
		errs = append(errs, errors.New("META_AD_LIMIT must be positive"))
	}
	if c.MetaMaxPages <= 0 {
		errs = append(errs, errors.New("META_MAX_PAGES must be positive"))
	}
	if c.RateLimitIPEnabled && (c.RateLimitIPRPS <= 0 || c.RateLimitIPBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_IP_RPS and RATE_LIMIT_IP_BURST must be positive"))
	}
	if c.MetaRateLimitRPS < 0 {
		errs = append(errs, errors.New("META_RATE_LIMIT_RPS must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads an optional .env file, parses environment variables and
// validates the result. Real environment variables win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
