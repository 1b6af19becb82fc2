package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "studio.yaml"

// DefaultEnvFile is the dotenv file loaded before reading the environment.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < .env < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "STUDIO_PORT")
	setString(&cfg.Server.CORSOrigin, "STUDIO_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "STUDIO_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "STUDIO_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "STUDIO_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "STUDIO_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "STUDIO_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "STUDIO_NATS_STREAM")
	setString(&cfg.Logging.Level, "STUDIO_LOG_LEVEL")
	setString(&cfg.Logging.Service, "STUDIO_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "STUDIO_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "STUDIO_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "STUDIO_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "STUDIO_RATE_RPS")
	setInt(&cfg.Rate.Burst, "STUDIO_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "STUDIO_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "STUDIO_RATE_MAX_IDLE_TIME")

	// Auth
	setBool(&cfg.Auth.Enabled, "STUDIO_AUTH_ENABLED")
	setString(&cfg.Auth.Issuer, "STUDIO_AUTH_ISSUER")
	setString(&cfg.Auth.Audience, "STUDIO_AUTH_AUDIENCE")

	// Payment
	setString(&cfg.Payment.BaseURL, "RAZORPAY_BASE_URL")
	setString(&cfg.Payment.KeyID, "RAZORPAY_KEY_ID")
	setString(&cfg.Payment.Currency, "STUDIO_PAYMENT_CURRENCY")
	setDuration(&cfg.Payment.Timeout, "STUDIO_PAYMENT_TIMEOUT")
	setBool(&cfg.Payment.RequireSignature, "STUDIO_PAYMENT_REQUIRE_SIGNATURE")
	setDuration(&cfg.Payment.OrphanGrace, "STUDIO_PAYMENT_ORPHAN_GRACE")

	// Email
	setString(&cfg.Email.Provider, "STUDIO_EMAIL_PROVIDER")
	setString(&cfg.Email.BaseURL, "RESEND_BASE_URL")
	setString(&cfg.Email.From, "STUDIO_EMAIL_FROM")
	setDuration(&cfg.Email.Timeout, "STUDIO_EMAIL_TIMEOUT")
	setString(&cfg.Email.SMTPHost, "STUDIO_SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "STUDIO_SMTP_PORT")
	setString(&cfg.Email.SMTPUser, "STUDIO_SMTP_USER")

	// Meetings
	setString(&cfg.Meetings.JoinBaseURL, "STUDIO_JOIN_BASE_URL")
	setInt(&cfg.Meetings.DefaultDuration, "STUDIO_MEETING_DEFAULT_DURATION")
	setInt(&cfg.Meetings.DispatchConcurrency, "STUDIO_DISPATCH_CONCURRENCY")

	// Quota
	setString(&cfg.Quota.ContactEmail, "STUDIO_QUOTA_CONTACT_EMAIL")
	setString(&cfg.Quota.ContactURL, "STUDIO_QUOTA_CONTACT_URL")
	setDuration(&cfg.Quota.PlanCacheTTL, "STUDIO_PLAN_CACHE_TTL")
	setLimits(&cfg.Quota.Participants, "STUDIO_QUOTA_PARTICIPANTS")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "STUDIO_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "STUDIO_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "STUDIO_CACHE_L2_TTL")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "STUDIO_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "STUDIO_IDEMPOTENCY_TTL")

	// Retention
	setString(&cfg.Retention.Schedule, "STUDIO_RETENTION_SCHEDULE")
	setDuration(&cfg.Retention.WebhookEvents, "STUDIO_RETENTION_WEBHOOK_EVENTS")

	// OpenTelemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "STUDIO_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRatio, "STUDIO_OTEL_SAMPLE_RATIO")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if len(cfg.Payment.Currency) != 3 {
		return errors.New("payment.currency must be a 3-letter ISO code")
	}
	switch cfg.Email.Provider {
	case "resend", "smtp", "log":
	default:
		return fmt.Errorf("email.provider %q is not supported", cfg.Email.Provider)
	}
	if cfg.Meetings.DispatchConcurrency < 1 {
		return errors.New("meetings.dispatch_concurrency must be >= 1")
	}
	if cfg.Meetings.DefaultDuration < 1 {
		return errors.New("meetings.default_duration must be >= 1")
	}
	for name, limit := range cfg.Quota.Participants {
		if limit < 1 {
			return fmt.Errorf("quota.participants.%s must be >= 1", name)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setLimits parses "plan=limit,plan=limit" into dst. Malformed pairs are skipped.
func setLimits(dst *map[string]int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if *dst == nil {
		*dst = make(map[string]int)
	}
	for _, pair := range strings.Split(v, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		(*dst)[strings.ToLower(strings.TrimSpace(name))] = n
	}
}
