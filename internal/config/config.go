// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and JURYLINE_* environment variables on top.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"runtime"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory review queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// WorkerCount sets the number of review ingestion workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// DedupeSize bounds the review idempotency key set.
	DedupeSize int `koanf:"dedupe_size" validate:"min=1"`

	// BiasThreshold is the default outlier multiplier of the bias report.
	BiasThreshold float64 `koanf:"bias_threshold" validate:"min=0"`

	// IntegrityTolerance is how far outside a criterion's scale a score may
	// fall, as a fraction of the scale span, before it is skipped.
	IntegrityTolerance float64 `koanf:"integrity_tolerance" validate:"min=0,max=1"`

	// LeaderboardCacheTTLMS is how long a computed leaderboard is reused. Zero
	// disables the cache.
	LeaderboardCacheTTLMS int `koanf:"leaderboard_cache_ttl_ms" validate:"min=0"`

	// StoreDriver selects memory or mysql.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory mysql"`

	// MySQLDSN is required with the mysql driver.
	MySQLDSN string `koanf:"mysql_dsn" validate:"required_if=StoreDriver mysql"`

	// AMQPURL enables assignment notifications when set.
	AMQPURL string `koanf:"amqp_url" validate:"omitempty,url"`

	// AMQPQueue is the queue assignment notifications are published to.
	AMQPQueue string `koanf:"amqp_queue" validate:"required_with=AMQPURL"`

	// RateLimitRPS limits write requests per second. Zero disables limiting.
	RateLimitRPS float64 `koanf:"rate_limit_rps" validate:"min=0"`

	// RateLimitBurst is the write burst allowance.
	RateLimitBurst int `koanf:"rate_limit_burst" validate:"min=0"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            50_000,
		BiasThreshold:         1.0,
		IntegrityTolerance:    1e-6,
		LeaderboardCacheTTLMS: 5_000,
		StoreDriver:           StoreMemory,
		AMQPQueue:             "juryline.assignments",
		RateLimitRPS:          0,
		RateLimitBurst:        20,
	}
}

// LeaderboardCacheTTL returns the cache TTL as a duration.
func (c *Config) LeaderboardCacheTTL() time.Duration {
	return time.Duration(c.LeaderboardCacheTTLMS) * time.Millisecond
}
