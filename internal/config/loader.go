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
const DefaultConfigFile = "analytics-cache.yaml"

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
	setString(&cfg.Server.Port, "TUTORIUM_PORT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TUTORIUM_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TUTORIUM_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TUTORIUM_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TUTORIUM_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TUTORIUM_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "TUTORIUM_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TUTORIUM_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TUTORIUM_LOG_ASYNC")

	setString(&cfg.Cache.Namespace, "TUTORIUM_CACHE_NAMESPACE")
	setInt64(&cfg.Cache.L1MaxSizeMB, "TUTORIUM_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "TUTORIUM_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2MaxAge, "TUTORIUM_CACHE_L2_MAX_AGE")

	setBool(&cfg.Warmer.Enabled, "TUTORIUM_WARMER_ENABLED")
	setDuration(&cfg.Warmer.Interval, "TUTORIUM_WARMER_INTERVAL")
	setDuration(&cfg.Sweep.Interval, "TUTORIUM_SWEEP_INTERVAL")

	setInt(&cfg.Breaker.MaxFailures, "TUTORIUM_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TUTORIUM_BREAKER_TIMEOUT")

	setBool(&cfg.Telemetry.Enabled, "TUTORIUM_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "TUTORIUM_OTEL_ENDPOINT")
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
	if cfg.Cache.Namespace == "" {
		return errors.New("cache.namespace is required")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.Cache.L2Bucket == "" {
		return errors.New("cache.l2_bucket is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	for kind, ttl := range cfg.TTLs {
		if ttl.L1 < 0 || ttl.L2 < 0 || ttl.L3 < 0 {
			return fmt.Errorf("ttls.%s: durations must be non-negative", kind)
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
