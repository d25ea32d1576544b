package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "mfi-api.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "MFI_PORT")
	setString(&cfg.Server.CORSOrigin, "MFI_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "MFI_REQUEST_TIMEOUT")
	setInt64(&cfg.Server.BodyLimit, "MFI_BODY_LIMIT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MFI_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MFI_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "MFI_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "MFI_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "MFI_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.AuditStream, "MFI_NATS_AUDIT_STREAM")
	setString(&cfg.Logging.Level, "MFI_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MFI_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "MFI_LOG_ASYNC")

	// Auth
	setBool(&cfg.Auth.Enabled, "MFI_AUTH_ENABLED")
	setString(&cfg.Auth.SecretEnv, "MFI_AUTH_SECRET_ENV")
	setString(&cfg.Auth.Issuer, "MFI_AUTH_ISSUER")
	setDuration(&cfg.Authz.CacheTTL, "MFI_AUTHZ_CACHE_TTL")
	setInt64(&cfg.Authz.CacheMaxMB, "MFI_AUTHZ_CACHE_MAX_MB")
	setString(&cfg.Authz.CacheBucket, "MFI_AUTHZ_CACHE_BUCKET")

	// Blob storage
	setString(&cfg.Blob.Driver, "MFI_BLOB_DRIVER")
	setString(&cfg.Blob.Bucket, "MFI_BLOB_BUCKET")
	setString(&cfg.Blob.Region, "MFI_BLOB_REGION")
	setString(&cfg.Blob.Endpoint, "MFI_BLOB_ENDPOINT")
	setString(&cfg.Blob.PublicBaseURL, "MFI_BLOB_PUBLIC_BASE_URL")
	setString(&cfg.Blob.LocalDir, "MFI_BLOB_LOCAL_DIR")

	setInt(&cfg.Breaker.MaxFailures, "MFI_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MFI_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "MFI_RATE_RPS")
	setInt(&cfg.Rate.Burst, "MFI_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "MFI_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "MFI_RATE_MAX_IDLE_TIME")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "MFI_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "MFI_IDEMPOTENCY_TTL")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "MFI_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "MFI_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "MFI_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be > 0")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
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
	if cfg.Authz.CacheTTL < 0 {
		return errors.New("authz.cache_ttl must be >= 0")
	}
	switch cfg.Blob.Driver {
	case "local":
		if cfg.Blob.LocalDir == "" {
			return errors.New("blob.local_dir is required for the local driver")
		}
	case "s3":
		if cfg.Blob.Bucket == "" {
			return errors.New("blob.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob.driver %q is not one of local, s3", cfg.Blob.Driver)
	}
	if cfg.Auth.Enabled && cfg.Auth.SecretEnv == "" {
		return errors.New("auth.secret_env is required when auth is enabled")
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
