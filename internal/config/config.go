// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New builds a Config with defaults; Load layers a file and the environment on top.
// - Durations are configured in whole seconds or milliseconds and exposed as time.Duration.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SourceBaseURL is the results site root.
	SourceBaseURL    string  `koanf:"source_base_url"`
	SourceTimeoutMS  int     `koanf:"source_timeout_ms"`
	SourceRatePerSec float64 `koanf:"source_rate_per_sec"`
	SourceBurst      int     `koanf:"source_burst"`

	// FetchConcurrency bounds in-flight personal-best fetches per cohort load.
	FetchConcurrency int `koanf:"fetch_concurrency"`

	// RankingDate overrides the "DD/MM/YYYY" date sent to the results site.
	RankingDate string `koanf:"ranking_date"`

	// MaxCohort caps how many ranked swimmers have their histories fetched.
	MaxCohort int `koanf:"max_cohort"`

	// CacheBackend is memory, redis or none.
	CacheBackend   string `koanf:"cache_backend"`
	CacheDir       string `koanf:"cache_dir"`
	CacheMemoryMax int    `koanf:"cache_memory_max"`
	RankingsTTLS   int    `koanf:"rankings_ttl_s"`
	PBTTLS         int    `koanf:"pb_ttl_s"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// DBPath enables the SQLite snapshot store when set.
	DBPath string `koanf:"db_path"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the refresh queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets how many pending refreshes are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLimit caps list endpoints' ?limit.
	MaxLimit int `koanf:"max_limit"`

	DefaultMonths int     `koanf:"default_months"`
	PredictionK   float64 `koanf:"prediction_k"`

	// RefreshSchedule is a five-field cron expression or a descriptor such as "@every 6h";
	// empty disables scheduled refreshes.
	RefreshSchedule string `koanf:"refresh_schedule"`

	// Metrics settings for the Prometheus registry behind /healthz.
	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsIntervalS int    `koanf:"metrics_interval_s"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		SourceBaseURL:    "https://www.swimmingresults.org",
		SourceTimeoutMS:  20_000,
		SourceRatePerSec: 5,
		SourceBurst:      5,
		FetchConcurrency: 4,
		MaxCohort:        50,
		CacheBackend:     "memory",
		CacheMemoryMax:   4096,
		RankingsTTLS:     6 * 3600,
		PBTTLS:           7 * 24 * 3600,
		RedisAddr:        "localhost:6379",
		WorkerCount:      2,
		QueueSize:        256,
		DedupeSize:       1024,
		MaxLimit:         100,
		DefaultMonths:    12,
		PredictionK:      3,
		MetricsEnabled:   true,
		MetricsNamespace: "qualtrack",
		MetricsIntervalS: 10,
	}
}

// SourceTimeout is SourceTimeoutMS as a duration.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutMS) * time.Millisecond
}

// RankingsTTL is RankingsTTLS as a duration.
func (c *Config) RankingsTTL() time.Duration {
	return time.Duration(c.RankingsTTLS) * time.Second
}

// PBTTL is PBTTLS as a duration.
func (c *Config) PBTTL() time.Duration {
	return time.Duration(c.PBTTLS) * time.Second
}

// MetricsInterval is MetricsIntervalS as a duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalS) * time.Second
}

var metricNamespace = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks bounds and enumerations.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("unknown log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.CacheBackend) {
	case "memory", "redis", "none":
	default:
		return invalid("unknown cache_backend %q", c.CacheBackend)
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		return invalid("redis_addr is required for the redis cache")
	}
	if c.SourceBaseURL == "" {
		return invalid("source_base_url must not be empty")
	}
	if c.SourceRatePerSec <= 0 || c.SourceBurst < 1 {
		return invalid("source rate and burst must be positive")
	}
	for name, v := range map[string]int{
		"source_timeout_ms":  c.SourceTimeoutMS,
		"fetch_concurrency":  c.FetchConcurrency,
		"max_cohort":         c.MaxCohort,
		"worker_count":       c.WorkerCount,
		"queue_size":         c.QueueSize,
		"dedupe_size":        c.DedupeSize,
		"max_limit":          c.MaxLimit,
		"default_months":     c.DefaultMonths,
		"rankings_ttl_s":     c.RankingsTTLS,
		"pb_ttl_s":           c.PBTTLS,
		"metrics_interval_s": c.MetricsIntervalS,
	} {
		if v < 1 {
			return invalid("%s must be positive, got %d", name, v)
		}
	}
	if c.PredictionK <= 0 {
		return invalid("prediction_k must be positive")
	}
	if !metricNamespace.MatchString(c.MetricsNamespace) {
		return invalid("metrics_namespace %q is not a valid metric name", c.MetricsNamespace)
	}
	return nil
}
