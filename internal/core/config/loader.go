package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// envOverrides are the deployment-sensitive settings that can be supplied
// through the environment without editing the config file.
type envOverrides struct {
	EndpointURL   string `env:"ENHANCEQ_ENDPOINT_URL"`
	RedisURL      string `env:"ENHANCEQ_REDIS_URL"`
	RedisPassword string `env:"ENHANCEQ_REDIS_PASSWORD"`
	Port          int    `env:"ENHANCEQ_PORT"`
	LogLevel      string `env:"ENHANCEQ_LOG_LEVEL"`
}

// Load reads configuration from a YAML file, expands environment variables
// in its content, applies environment overrides, and fills defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	applyOverrides(&cfg, overrides)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyOverrides(cfg *AppConfig, o envOverrides) {
	if o.EndpointURL != "" {
		cfg.Endpoint.URL = o.EndpointURL
	}
	if o.RedisURL != "" {
		cfg.Redis.URL = o.RedisURL
	}
	if o.RedisPassword != "" {
		cfg.Redis.Password = o.RedisPassword
	}
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Endpoint.Timeout == 0 {
		cfg.Endpoint.Timeout = 30 * time.Second
	}
	if cfg.Endpoint.HealthTimeout == 0 {
		cfg.Endpoint.HealthTimeout = 5 * time.Second
	}

	r := &cfg.Resilience
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.BaseBackoff == 0 {
		r.BaseBackoff = 1 * time.Second
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = 10 * time.Second
	}
	if r.BreakerThreshold == 0 {
		r.BreakerThreshold = 5
	}
	if r.BreakerOpenTimeout == 0 {
		r.BreakerOpenTimeout = 60 * time.Second
	}
	if r.PollInterval == 0 {
		r.PollInterval = 2 * time.Second
	}
	if r.MaxProcessingTime == 0 {
		r.MaxProcessingTime = 60 * time.Second
	}
	if r.MaxConsecutiveErrors == 0 {
		r.MaxConsecutiveErrors = 3
	}
	if r.ExpectedDuration == 0 {
		r.ExpectedDuration = 30 * time.Second
	}

	f := &cfg.Fallback
	if f.QueueCapacity == 0 {
		f.QueueCapacity = 10
	}
	if f.StrategyTimeout == 0 {
		f.StrategyTimeout = 5 * time.Second
	}
	if f.CacheTTL == 0 {
		f.CacheTTL = 1 * time.Hour
	}
}
