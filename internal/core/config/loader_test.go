package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
endpoint:
  url: https://api.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Resilience.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", cfg.Resilience.MaxRetries)
	}
	if cfg.Resilience.BreakerThreshold != 5 {
		t.Errorf("breaker threshold = %d, want 5", cfg.Resilience.BreakerThreshold)
	}
	if cfg.Resilience.PollInterval != 2*time.Second {
		t.Errorf("poll interval = %v, want 2s", cfg.Resilience.PollInterval)
	}
	if cfg.Resilience.MaxProcessingTime != 60*time.Second {
		t.Errorf("processing ceiling = %v, want 60s", cfg.Resilience.MaxProcessingTime)
	}
	if cfg.Fallback.QueueCapacity != 10 {
		t.Errorf("queue capacity = %d, want 10", cfg.Fallback.QueueCapacity)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
endpoint:
  url: https://api.example.com
resilience:
  max_retries: 7
  breaker_threshold: 2
fallback:
  queue_capacity: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Resilience.MaxRetries != 7 {
		t.Errorf("max retries = %d, want 7", cfg.Resilience.MaxRetries)
	}
	if cfg.Resilience.BreakerThreshold != 2 {
		t.Errorf("breaker threshold = %d, want 2", cfg.Resilience.BreakerThreshold)
	}
	if cfg.Fallback.QueueCapacity != 3 {
		t.Errorf("queue capacity = %d, want 3", cfg.Fallback.QueueCapacity)
	}
}

func TestLoadEnvExpansionAndOverrides(t *testing.T) {
	t.Setenv("TEST_API_HOST", "api.internal")
	t.Setenv("ENHANCEQ_PORT", "7070")
	t.Setenv("ENHANCEQ_REDIS_URL", "redis://localhost:6379/0")

	path := writeConfig(t, `
endpoint:
  url: https://${TEST_API_HOST}/enhance
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Endpoint.URL != "https://api.internal/enhance" {
		t.Errorf("endpoint url = %s, want expanded host", cfg.Endpoint.URL)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("redis url = %s, want env override", cfg.Redis.URL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
