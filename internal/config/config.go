// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/crawlware/topiccrawler/internal/classify"
)

// Config captures all service configuration knobs loaded via Viper. Values
// are fixed at construction; nothing re-reads them mid-run.
type Config struct {
	Server  ServerConfig             `mapstructure:"server"`
	Crawler CrawlerConfig            `mapstructure:"crawler"`
	HTTP    HTTPConfig               `mapstructure:"http"`
	Jobs    JobsConfig               `mapstructure:"jobs"`
	Logging LoggingConfig            `mapstructure:"logging"`
	Topics  []classify.TopicKeywords `mapstructure:"topics"`
}

// ServerConfig controls the metrics/health listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the crawl pipeline.
type CrawlerConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	RespectRobots   bool   `mapstructure:"respect_robots"`
	ExtractContent  bool   `mapstructure:"extract_content"`
	ClassifyTopics  bool   `mapstructure:"classify_topics"`
	MaxContentBytes int64  `mapstructure:"max_content_bytes"`
	DelayMs         int    `mapstructure:"delay_ms"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`
}

// JobsConfig governs the coordinator's worker pool and retry policy.
type JobsConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	QueueDepth       int `mapstructure:"queue_depth"`
	RetryCeiling     int `mapstructure:"retry_ceiling"`
	RetryBaseSeconds int `mapstructure:"retry_base_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Topics) == 0 {
		cfg.Topics = classify.DefaultTopics()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.user_agent", "topiccrawler-bot/0.1")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.extract_content", true)
	v.SetDefault("crawler.classify_topics", true)
	v.SetDefault("crawler.max_content_bytes", 10<<20)
	v.SetDefault("crawler.delay_ms", 0)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_base_ms", 1000)
	v.SetDefault("jobs.concurrency", 4)
	v.SetDefault("jobs.queue_depth", 64)
	v.SetDefault("jobs.retry_ceiling", 3)
	v.SetDefault("jobs.retry_base_seconds", 60)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.MaxContentBytes <= 0 {
		return fmt.Errorf("crawler.max_content_bytes must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.Jobs.Concurrency <= 0 {
		return fmt.Errorf("jobs.concurrency must be > 0")
	}
	if c.Jobs.RetryCeiling <= 0 {
		return fmt.Errorf("jobs.retry_ceiling must be > 0")
	}
	for _, topic := range c.Topics {
		if topic.Name == "" {
			return fmt.Errorf("topics entries must have a name")
		}
		if len(topic.Keywords) == 0 {
			return fmt.Errorf("topic %q must have keywords", topic.Name)
		}
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffBase converts the fetch backoff base into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseMs) * time.Millisecond
}

// RetryBase converts the coordinator retry base into a duration.
func (c Config) RetryBase() time.Duration {
	return time.Duration(c.Jobs.RetryBaseSeconds) * time.Second
}

// InterRequestDelay converts the per-request delay into a duration.
func (c Config) InterRequestDelay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}
