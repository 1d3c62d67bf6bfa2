// Package config provides hierarchical configuration loading for tasktrack.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the tasktrack service.
type Config struct {
	Server    Server    `yaml:"server"`
	NATS      NATS      `yaml:"nats"`
	Logging   Logging   `yaml:"logging"`
	Cache     Cache     `yaml:"cache"`
	Breaker   Breaker   `yaml:"breaker"`
	Notify    Notify    `yaml:"notify"`
	Watchdog  Watchdog  `yaml:"watchdog"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// NATS holds the lifecycle message bus configuration. An empty URL disables
// the queue bridge; in-process producers use the HTTP API instead.
type NATS struct {
	URL string `yaml:"url"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Cache holds the tombstone cache configuration.
type Cache struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

// Breaker holds the per-notifier circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// Notify holds notification delivery configuration.
type Notify struct {
	// SlackWebhookURL enables the Slack ops notifier when non-empty.
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	// MaxConcurrentSends bounds parallel notifier deliveries.
	MaxConcurrentSends int64 `yaml:"max_concurrent_sends"`
	// SendTimeout bounds a single notifier delivery.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// Watchdog holds the stale-task sweeper configuration. Disabled when
// MaxTaskAge is zero: producers are then fully responsible for terminating
// their tasks.
type Watchdog struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxTaskAge    time.Duration `yaml:"max_task_age"`
}

// Telemetry holds OpenTelemetry export configuration. An empty endpoint
// leaves the no-op providers installed.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8085",
			CORSOrigin: "http://localhost:4200",
		},
		NATS: NATS{
			URL: "",
		},
		Logging: Logging{
			Level:   "info",
			Service: "tasktrack",
		},
		Cache: Cache{
			MaxSizeMB: 8,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
		Notify: Notify{
			MaxConcurrentSends: 4,
			SendTimeout:        10 * time.Second,
		},
		Watchdog: Watchdog{
			SweepInterval: time.Minute,
			MaxTaskAge:    0,
		},
	}
}
