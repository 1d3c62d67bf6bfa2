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
const DefaultConfigFile = "tasktrack.yaml"

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
	data, err := os.ReadFile(path)
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
	setString(&cfg.Server.Port, "TASKTRACK_PORT")
	setString(&cfg.Server.CORSOrigin, "TASKTRACK_CORS_ORIGIN")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "TASKTRACK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TASKTRACK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TASKTRACK_LOG_ASYNC")
	setInt64(&cfg.Cache.MaxSizeMB, "TASKTRACK_CACHE_SIZE_MB")
	setInt(&cfg.Breaker.MaxFailures, "TASKTRACK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Cooldown, "TASKTRACK_BREAKER_COOLDOWN")
	setString(&cfg.Notify.SlackWebhookURL, "TASKTRACK_SLACK_WEBHOOK_URL")
	setInt64(&cfg.Notify.MaxConcurrentSends, "TASKTRACK_NOTIFY_MAX_CONCURRENT")
	setDuration(&cfg.Notify.SendTimeout, "TASKTRACK_NOTIFY_SEND_TIMEOUT")
	setDuration(&cfg.Watchdog.SweepInterval, "TASKTRACK_WATCHDOG_INTERVAL")
	setDuration(&cfg.Watchdog.MaxTaskAge, "TASKTRACK_WATCHDOG_MAX_AGE")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Notify.MaxConcurrentSends < 1 {
		return errors.New("notify.max_concurrent_sends must be >= 1")
	}
	if cfg.Cache.MaxSizeMB < 1 {
		return errors.New("cache.max_size_mb must be >= 1")
	}
	if cfg.Watchdog.MaxTaskAge > 0 && cfg.Watchdog.SweepInterval <= 0 {
		return errors.New("watchdog.sweep_interval must be > 0 when max_task_age is set")
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
