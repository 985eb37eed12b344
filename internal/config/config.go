// Package config loads server configuration from a YAML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Bills    BillsConfig    `yaml:"bills"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RateLimitRPS    int           `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// SupabaseConfig configures the document store connection.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	AnonKey    string `yaml:"anon_key"`
	ServiceKey string `yaml:"service_key"`
	JWTSecret  string `yaml:"jwt_secret"`
	Resilience bool   `yaml:"resilience"`
}

// StripeConfig configures the payment processor integration.
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	PriceID       string `yaml:"price_id"`
	AppBaseURL    string `yaml:"app_base_url"`
}

// BillsConfig configures the bill reminder sweep.
type BillsConfig struct {
	ReminderInterval time.Duration `yaml:"reminder_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Bills: BillsConfig{
			ReminderInterval: time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file is not an error; defaults plus
// environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables. Secrets are
// expected to arrive this way in deployment.
func (c *Config) applyEnv() {
	setIfEnv(&c.Server.Addr, "SERVER_ADDR")
	setIfEnv(&c.Supabase.URL, "SUPABASE_URL")
	setIfEnv(&c.Supabase.AnonKey, "SUPABASE_ANON_KEY")
	setIfEnv(&c.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setIfEnv(&c.Supabase.JWTSecret, "SUPABASE_JWT_SECRET")
	setIfEnv(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setIfEnv(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setIfEnv(&c.Stripe.PriceID, "STRIPE_PRICE_ID")
	setIfEnv(&c.Stripe.AppBaseURL, "APP_BASE_URL")
	setIfEnv(&c.Log.Level, "LOG_LEVEL")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	if c.Supabase.URL == "" {
		return fmt.Errorf("supabase url is required")
	}
	if c.Supabase.ServiceKey == "" {
		return fmt.Errorf("supabase service key is required")
	}
	if c.Supabase.JWTSecret == "" {
		return fmt.Errorf("supabase jwt secret is required")
	}
	if c.Bills.ReminderInterval <= 0 {
		return fmt.Errorf("bills reminder interval must be positive")
	}
	return nil
}
