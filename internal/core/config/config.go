package config

import (
	"time"

	redisclient "github.com/lekhoa/enhanceq/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Endpoint   EndpointConfig     `yaml:"endpoint"`
	Resilience ResilienceConfig   `yaml:"resilience"`
	Fallback   FallbackConfig     `yaml:"fallback"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// EndpointConfig holds remote enhancement API settings.
type EndpointConfig struct {
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
}

// ResilienceConfig holds retry, breaker, and polling settings. Every field
// is independently overridable; zero values take the documented defaults.
type ResilienceConfig struct {
	MaxRetries           int           `yaml:"max_retries"`
	BaseBackoff          time.Duration `yaml:"base_backoff"`
	MaxBackoff           time.Duration `yaml:"max_backoff"`
	BreakerThreshold     int           `yaml:"breaker_threshold"`
	BreakerOpenTimeout   time.Duration `yaml:"breaker_open_timeout"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	MaxProcessingTime    time.Duration `yaml:"max_processing_time"`
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"`
	ExpectedDuration     time.Duration `yaml:"expected_duration"`
}

// FallbackConfig holds degraded-mode settings.
type FallbackConfig struct {
	QueueCapacity   int           `yaml:"queue_capacity"`
	StrategyTimeout time.Duration `yaml:"strategy_timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
