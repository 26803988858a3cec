package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.UserAgent != "topiccrawler-bot/0.1" {
		t.Fatalf("unexpected default user agent %q", cfg.Crawler.UserAgent)
	}
	if !cfg.Crawler.RespectRobots || !cfg.Crawler.ExtractContent || !cfg.Crawler.ClassifyTopics {
		t.Fatalf("expected crawl stages enabled by default")
	}
	if cfg.Crawler.MaxContentBytes != 10<<20 {
		t.Fatalf("expected 10MB content cap, got %d", cfg.Crawler.MaxContentBytes)
	}
	if cfg.HTTP.MaxRetries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.HTTP.MaxRetries)
	}
	if got := cfg.RequestTimeout(); got != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", got)
	}
	if got := cfg.BackoffBase(); got != time.Second {
		t.Fatalf("expected 1s backoff base, got %v", got)
	}
	if got := cfg.RetryBase(); got != 60*time.Second {
		t.Fatalf("expected 60s retry base, got %v", got)
	}
	if len(cfg.Topics) != 14 {
		t.Fatalf("expected the stock topic table, got %d entries", len(cfg.Topics))
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
crawler:
  user_agent: custom-bot/2.0
  respect_robots: false
  max_content_bytes: 1048576
  delay_ms: 250
http:
  timeout_seconds: 45
  max_retries: 5
  backoff_base_ms: 500
jobs:
  concurrency: 8
  queue_depth: 128
  retry_ceiling: 2
  retry_base_seconds: 30
logging:
  development: false
topics:
  - name: gardening
    keywords: [soil, compost]
  - name: astronomy
    keywords: [telescope, nebula]
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.UserAgent != "custom-bot/2.0" || cfg.Crawler.RespectRobots {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Jobs.Concurrency != 8 || cfg.Jobs.RetryCeiling != 2 {
		t.Fatalf("expected job overrides to apply: %+v", cfg.Jobs)
	}
	if got := cfg.InterRequestDelay(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms inter-request delay, got %v", got)
	}
	if got := cfg.BackoffBase(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms backoff base, got %v", got)
	}
	if len(cfg.Topics) != 2 || cfg.Topics[0].Name != "gardening" {
		t.Fatalf("expected custom topic table to replace the default: %+v", cfg.Topics)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }},
		{"empty user agent", func(c *Config) { c.Crawler.UserAgent = "" }},
		{"zero content cap", func(c *Config) { c.Crawler.MaxContentBytes = 0 }},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }},
		{"zero retries", func(c *Config) { c.HTTP.MaxRetries = 0 }},
		{"zero concurrency", func(c *Config) { c.Jobs.Concurrency = 0 }},
		{"zero retry ceiling", func(c *Config) { c.Jobs.RetryCeiling = 0 }},
		{"unnamed topic", func(c *Config) { c.Topics[0].Name = "" }},
		{"keywordless topic", func(c *Config) { c.Topics[0].Keywords = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected a validation error")
			}
		})
	}
}
