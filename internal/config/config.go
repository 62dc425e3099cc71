// Package config centralises runtime configuration helpers for tradeledger services.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment identifies the runtime environment where tradeledger operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// QueueSettings configures the work queue consumer.
type QueueSettings struct {
	URL      string
	Name     string
	Prefetch int
}

// PostgresSettings configures the execution record store.
type PostgresSettings struct {
	DSN      string
	PoolSize int
}

// OracleSettings configures the market data price oracle client.
type OracleSettings struct {
	BaseURL     string
	RatePerSec  float64
	Burst       int
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
}

// RetrySettings shapes the orchestrator retry policy.
type RetrySettings struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// WorkerSettings bounds pipeline concurrency.
type WorkerSettings struct {
	Concurrency int
	QueueDepth  int
}

// Settings contains the tradeledger configuration tree loaded from defaults and overrides.
type Settings struct {
	Environment     Environment
	Queue           QueueSettings
	Postgres        PostgresSettings
	Oracle          OracleSettings
	Retry           RetrySettings
	Worker          WorkerSettings
	FeeSchedulePath string
	DLQCapacity     int
}

// Default returns the default tradeledger configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Queue: QueueSettings{
			URL:      "",
			Name:     "spreadsheet_tasks",
			Prefetch: 1,
		},
		Postgres: PostgresSettings{
			DSN:      "",
			PoolSize: 4,
		},
		Oracle: OracleSettings{
			BaseURL:     "",
			RatePerSec:  2,
			Burst:       1,
			CacheTTL:    15 * time.Minute,
			HTTPTimeout: 10 * time.Second,
		},
		Retry: RetrySettings{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
			Multiplier:      2,
		},
		Worker: WorkerSettings{
			Concurrency: 4,
			QueueDepth:  16,
		},
		FeeSchedulePath: "config/participants.yaml",
		DLQCapacity:     256,
	}
}

// FromEnv loads configuration values from environment variables, overriding defaults.
func FromEnv() Settings {
	cfg := Default()
	if env := strings.TrimSpace(os.Getenv("TRADELEDGER_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}
	if url := strings.TrimSpace(os.Getenv("TRADELEDGER_QUEUE_URL")); url != "" {
		cfg.Queue.URL = url
	}
	if name := strings.TrimSpace(os.Getenv("TRADELEDGER_QUEUE_NAME")); name != "" {
		cfg.Queue.Name = name
	}
	if dsn := strings.TrimSpace(os.Getenv("TRADELEDGER_POSTGRES_DSN")); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if base := strings.TrimSpace(os.Getenv("TRADELEDGER_ORACLE_URL")); base != "" {
		cfg.Oracle.BaseURL = base
	}
	if path := strings.TrimSpace(os.Getenv("TRADELEDGER_FEE_SCHEDULE")); path != "" {
		cfg.FeeSchedulePath = path
	}
	if raw := strings.TrimSpace(os.Getenv("TRADELEDGER_WORKER_CONCURRENCY")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Worker.Concurrency = n
		}
	}
	if raw := strings.TrimSpace(os.Getenv("TRADELEDGER_MAX_RETRIES")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			cfg.Retry.MaxRetries = n
		}
	}
	return cfg
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithQueue overrides the work queue connection settings.
func WithQueue(url, name string, prefetch int) Option {
	url = strings.TrimSpace(url)
	name = strings.TrimSpace(name)
	return func(s *Settings) {
		if url != "" {
			s.Queue.URL = url
		}
		if name != "" {
			s.Queue.Name = name
		}
		if prefetch > 0 {
			s.Queue.Prefetch = prefetch
		}
	}
}

// WithPostgres overrides the execution record store settings.
func WithPostgres(dsn string, poolSize int) Option {
	dsn = strings.TrimSpace(dsn)
	return func(s *Settings) {
		if dsn != "" {
			s.Postgres.DSN = dsn
		}
		if poolSize > 0 {
			s.Postgres.PoolSize = poolSize
		}
	}
}

// WithOracle overrides the price oracle client settings.
func WithOracle(baseURL string, ratePerSec float64, burst int) Option {
	baseURL = strings.TrimSpace(baseURL)
	return func(s *Settings) {
		if baseURL != "" {
			s.Oracle.BaseURL = baseURL
		}
		if ratePerSec > 0 {
			s.Oracle.RatePerSec = ratePerSec
		}
		if burst > 0 {
			s.Oracle.Burst = burst
		}
	}
}

// WithRetry overrides the orchestrator retry policy.
func WithRetry(maxRetries int, initial, max time.Duration, multiplier float64) Option {
	return func(s *Settings) {
		if maxRetries >= 0 {
			s.Retry.MaxRetries = maxRetries
		}
		if initial > 0 {
			s.Retry.InitialInterval = initial
		}
		if max > 0 {
			s.Retry.MaxInterval = max
		}
		if multiplier > 1 {
			s.Retry.Multiplier = multiplier
		}
	}
}

// WithWorker overrides pipeline concurrency bounds.
func WithWorker(concurrency, queueDepth int) Option {
	return func(s *Settings) {
		if concurrency > 0 {
			s.Worker.Concurrency = concurrency
		}
		if queueDepth > 0 {
			s.Worker.QueueDepth = queueDepth
		}
	}
}

// WithFeeSchedulePath overrides the participant fee schedule location.
func WithFeeSchedulePath(path string) Option {
	path = strings.TrimSpace(path)
	return func(s *Settings) {
		if path != "" {
			s.FeeSchedulePath = path
		}
	}
}
