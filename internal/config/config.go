// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for the users and usage_records tables.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// AuthBaseURL is the base URL of the managed auth provider's REST API (e.g. https://<project>.supabase.co/auth/v1).
	AuthBaseURL string `mapstructure:"AUTH_BASE_URL"`
	// AuthAnonKey is the public API key sent with user-scoped auth provider calls.
	AuthAnonKey string `mapstructure:"AUTH_ANON_KEY"`
	// AuthServiceKey is the service-role key for admin auth provider calls (password reset). Falls back to AuthAnonKey when empty.
	AuthServiceKey string `mapstructure:"AUTH_SERVICE_KEY"`

	// SecretKey is the shared HMAC secret for signing access tokens.
	SecretKey string `mapstructure:"SECRET_KEY"`
	// TokenIssuer is the iss claim on issued access tokens.
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// AccessTokenTTL is the access token lifetime (e.g. "30m").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`

	// OTLPEndpoint enables OTLP export of traces/metrics/logs when set (e.g. http://localhost:4317).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Usage export (optional). When Kafka brokers are set, the server publishes usage events to Kafka.
	// UsageKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	UsageKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// UsageKafkaTopic is the Kafka topic for usage events (default researchllm-usage).
	UsageKafkaTopic string `mapstructure:"USAGE_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the usage worker to push events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the usage worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// CORSOrigins is a comma-separated allowlist of origins; "*" allows any.
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
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

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTH_BASE_URL", "")
	v.SetDefault("AUTH_ANON_KEY", "")
	v.SetDefault("AUTH_SERVICE_KEY", "")
	v.SetDefault("SECRET_KEY", "")
	v.SetDefault("TOKEN_ISSUER", "researchllm")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("USAGE_KAFKA_TOPIC", "researchllm-usage")
	v.SetDefault("KAFKA_GROUP_ID", "researchllm-usage-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("config: SECRET_KEY must be set")
	}
	if cfg.SecretKey == "fallback-secret-key" && cfg.Env == "production" {
		return nil, errors.New("config: SECRET_KEY must not be the fallback value when APP_ENV=production")
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTokenTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// UsageKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if usage export is enabled (non-empty list) and to create the producer.
func (c *Config) UsageKafkaBrokersList() []string {
	if c == nil || c.UsageKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.UsageKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CORSOriginsList returns the configured CORS origins; "*" yields a single wildcard entry.
func (c *Config) CORSOriginsList() []string {
	if c == nil || c.CORSOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
