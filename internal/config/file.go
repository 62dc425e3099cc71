package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foliostack/tradeledger/errs"
)

type fileSettings struct {
	Environment string `yaml:"environment"`
	Queue       struct {
		URL      string `yaml:"url"`
		Name     string `yaml:"name"`
		Prefetch int    `yaml:"prefetch"`
	} `yaml:"queue"`
	Postgres struct {
		DSN      string `yaml:"dsn"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"postgres"`
	Oracle struct {
		BaseURL     string  `yaml:"base_url"`
		RatePerSec  float64 `yaml:"rate_per_sec"`
		Burst       int     `yaml:"burst"`
		CacheTTL    string  `yaml:"cache_ttl"`
		HTTPTimeout string  `yaml:"http_timeout"`
	} `yaml:"oracle"`
	Retry struct {
		MaxRetries      int     `yaml:"max_retries"`
		InitialInterval string  `yaml:"initial_interval"`
		MaxInterval     string  `yaml:"max_interval"`
		Multiplier      float64 `yaml:"multiplier"`
	} `yaml:"retry"`
	Worker struct {
		Concurrency int `yaml:"concurrency"`
		QueueDepth  int `yaml:"queue_depth"`
	} `yaml:"worker"`
	FeeSchedulePath string `yaml:"fee_schedule"`
	DLQCapacity     int    `yaml:"dlq_capacity"`
}

// FromFile loads configuration from a YAML file layered over the defaults.
func FromFile(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, errs.New("config", errs.CodeNotFound,
			errs.WithMessage("read config file"), errs.WithField("path", path), errs.WithCause(err))
	}
	var fs fileSettings
	if err := yaml.Unmarshal(raw, &fs); err != nil {
		return Settings{}, errs.New("config", errs.CodeInvalid,
			errs.WithMessage("parse config file"), errs.WithField("path", path), errs.WithCause(err))
	}

	cfg := Default()
	if fs.Environment != "" {
		cfg.Environment = Environment(fs.Environment)
	}
	if fs.Queue.URL != "" {
		cfg.Queue.URL = fs.Queue.URL
	}
	if fs.Queue.Name != "" {
		cfg.Queue.Name = fs.Queue.Name
	}
	if fs.Queue.Prefetch > 0 {
		cfg.Queue.Prefetch = fs.Queue.Prefetch
	}
	if fs.Postgres.DSN != "" {
		cfg.Postgres.DSN = fs.Postgres.DSN
	}
	if fs.Postgres.PoolSize > 0 {
		cfg.Postgres.PoolSize = fs.Postgres.PoolSize
	}
	if fs.Oracle.BaseURL != "" {
		cfg.Oracle.BaseURL = fs.Oracle.BaseURL
	}
	if fs.Oracle.RatePerSec > 0 {
		cfg.Oracle.RatePerSec = fs.Oracle.RatePerSec
	}
	if fs.Oracle.Burst > 0 {
		cfg.Oracle.Burst = fs.Oracle.Burst
	}
	if d, ok := parseDuration(fs.Oracle.CacheTTL); ok {
		cfg.Oracle.CacheTTL = d
	}
	if d, ok := parseDuration(fs.Oracle.HTTPTimeout); ok {
		cfg.Oracle.HTTPTimeout = d
	}
	if fs.Retry.MaxRetries > 0 {
		cfg.Retry.MaxRetries = fs.Retry.MaxRetries
	}
	if d, ok := parseDuration(fs.Retry.InitialInterval); ok {
		cfg.Retry.InitialInterval = d
	}
	if d, ok := parseDuration(fs.Retry.MaxInterval); ok {
		cfg.Retry.MaxInterval = d
	}
	if fs.Retry.Multiplier > 1 {
		cfg.Retry.Multiplier = fs.Retry.Multiplier
	}
	if fs.Worker.Concurrency > 0 {
		cfg.Worker.Concurrency = fs.Worker.Concurrency
	}
	if fs.Worker.QueueDepth > 0 {
		cfg.Worker.QueueDepth = fs.Worker.QueueDepth
	}
	if fs.FeeSchedulePath != "" {
		cfg.FeeSchedulePath = fs.FeeSchedulePath
	}
	if fs.DLQCapacity > 0 {
		cfg.DLQCapacity = fs.DLQCapacity
	}
	return cfg, nil
}

func parseDuration(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
