package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Solr       SolrConfig       `mapstructure:"solr"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SolrConfig struct {
	URL           string        `mapstructure:"url"`
	Core          string        `mapstructure:"core"`
	Timeout       time.Duration `mapstructure:"timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

type LLMConfig struct {
	Endpoints         []string      `mapstructure:"endpoints"`
	Model             string        `mapstructure:"model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	HealthTimeout     time.Duration `mapstructure:"health_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	// Token-bucket smoothing applied at the HTTP edge, before the
	// windowed quota.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type ResilienceConfig struct {
	Retry         RetryConfig   `mapstructure:"retry"`
	LLMBreaker    BreakerConfig `mapstructure:"llm_breaker"`
	SearchBreaker BreakerConfig `mapstructure:"search_breaker"`
}

type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	JitterFraction    float64       `mapstructure:"jitter_fraction"`
}

type BreakerConfig struct {
	Threshold    int           `mapstructure:"threshold"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
	Dir             string `mapstructure:"dir"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.BindEnv("solr.url", "SOLR_URL")
	viper.BindEnv("solr.core", "SOLR_CORE")
	viper.BindEnv("llm.model", "LLM_MODEL")
	viper.BindEnv("cache.redis.addr", "REDIS_ADDR")
	viper.BindEnv("cache.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("cache.redis.db", "REDIS_DB")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// LLM_ENDPOINTS overrides the configured endpoint list, comma-separated.
	if endpoints := os.Getenv("LLM_ENDPOINTS"); endpoints != "" {
		config.LLM.Endpoints = config.LLM.Endpoints[:0]
		for _, url := range strings.Split(endpoints, ",") {
			url = strings.TrimSpace(url)
			if url != "" {
				config.LLM.Endpoints = append(config.LLM.Endpoints, url)
			}
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "180s")
	viper.SetDefault("solr.core", "mycore")
	viper.SetDefault("solr.timeout", "10s")
	viper.SetDefault("solr.health_timeout", "5s")
	viper.SetDefault("llm.model", "gpt-oss:120b")
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", "120s")
	viper.SetDefault("llm.health_timeout", "5s")
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("cache.sweep_interval", "1m")
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.max_requests", 100)
	viper.SetDefault("rate_limit.window", "1m")
	viper.SetDefault("rate_limit.requests_per_minute", 60)
	viper.SetDefault("rate_limit.burst", 10)
	viper.SetDefault("resilience.retry.max_attempts", 3)
	viper.SetDefault("resilience.retry.base_delay", "1s")
	viper.SetDefault("resilience.retry.max_delay", "30s")
	viper.SetDefault("resilience.retry.backoff_multiplier", 2.0)
	viper.SetDefault("resilience.retry.jitter_fraction", 0.3)
	viper.SetDefault("resilience.llm_breaker.threshold", 3)
	viper.SetDefault("resilience.llm_breaker.reset_timeout", "30s")
	viper.SetDefault("resilience.search_breaker.threshold", 5)
	viper.SetDefault("resilience.search_breaker.reset_timeout", "1m")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("monitoring.metrics.enabled", true)
	viper.SetDefault("monitoring.metrics.port", 9090)
	viper.SetDefault("monitoring.metrics.path", "/metrics")
	viper.SetDefault("i18n.default_language", "en")
}

func validateConfig(cfg *Config) error {
	if cfg.Solr.URL == "" {
		return fmt.Errorf("solr url is required")
	}
	if len(cfg.LLM.Endpoints) == 0 {
		return fmt.Errorf("at least one llm endpoint is required")
	}
	return nil
}
