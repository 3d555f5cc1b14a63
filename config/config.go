// ABOUTME: This file implements configuration management with environment variable support
// ABOUTME: Provides a single layered config struct built once at startup and validated eagerly
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Auth       AuthConfig       `json:"auth"`
	Providers  ProvidersConfig  `json:"providers"`
	Gemini     GeminiConfig     `json:"gemini"`
	Retry      RetryConfig      `json:"retry"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Guard      GuardConfig      `json:"guard"`
	Cache      CacheConfig      `json:"cache"`
	Ingest     IngestConfig     `json:"ingest"`
	Engagement EngagementConfig `json:"engagement"`
	API        APIConfig        `json:"api"`
}

type ServerConfig struct {
	Port            int           `json:"port" env:"SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"60s"`
}

type DatabaseConfig struct {
	URL          string        `json:"-" env:"DATABASE_URL"`
	MaxConns     int32         `json:"max_conns" env:"DATABASE_MAX_CONNS" default:"10"`
	ConnTimeout  time.Duration `json:"conn_timeout" env:"DATABASE_CONN_TIMEOUT" default:"10s"`
	QueryTimeout time.Duration `json:"query_timeout" env:"DATABASE_QUERY_TIMEOUT" default:"15s"`
}

type RedisConfig struct {
	URL string `json:"-" env:"REDIS_URL" default:"redis://localhost:6379"`
}

type AuthConfig struct {
	JWTSecret string `json:"-" env:"JWT_SECRET"`
	Issuer    string `json:"issuer" env:"JWT_ISSUER" default:"goodnews"`
}

type ProvidersConfig struct {
	NewsDataAPIKey  string        `json:"-" env:"NEWSDATA_API_KEY"`
	NewsDataBaseURL string        `json:"newsdata_base_url" env:"NEWSDATA_BASE_URL" default:"https://newsdata.io/api/1"`
	GNewsAPIKey     string        `json:"-" env:"GNEWS_API_KEY"`
	GNewsBaseURL    string        `json:"gnews_base_url" env:"GNEWS_BASE_URL" default:"https://gnews.io/api/v4"`
	Timeout         time.Duration `json:"timeout" env:"PROVIDER_TIMEOUT" default:"10s"`
	PageSize        int           `json:"page_size" env:"PROVIDER_PAGE_SIZE" default:"10"`
	Country         string        `json:"country" env:"PROVIDER_COUNTRY" default:"us"`
	Language        string        `json:"language" env:"PROVIDER_LANGUAGE" default:"en"`
}

type GeminiConfig struct {
	APIKey  string        `json:"-" env:"GEMINI_API_KEY"`
	Model   string        `json:"model" env:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	Timeout time.Duration `json:"timeout" env:"GEMINI_TIMEOUT" default:"30s"`
}

type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" env:"RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay     time.Duration `json:"base_delay" env:"RETRY_BASE_DELAY" default:"1s"`
	MaxDelay      time.Duration `json:"max_delay" env:"RETRY_MAX_DELAY" default:"30s"`
	BackoffFactor float64       `json:"backoff_factor" env:"RETRY_BACKOFF_FACTOR" default:"2.0"`
	JitterFactor  float64       `json:"jitter_factor" env:"RETRY_JITTER_FACTOR" default:"0.1"`
}

type RateLimitConfig struct {
	CallsPerMinute int           `json:"calls_per_minute" env:"RATE_LIMIT_CALLS_PER_MINUTE" default:"30"`
	SweepInterval  time.Duration `json:"sweep_interval" env:"RATE_LIMIT_SWEEP_INTERVAL" default:"60s"`
}

type GuardConfig struct {
	Window        time.Duration `json:"window" env:"GUARD_WINDOW" default:"30s"`
	MaxConcurrent int           `json:"max_concurrent" env:"GUARD_MAX_CONCURRENT" default:"5"`
	SweepInterval time.Duration `json:"sweep_interval" env:"GUARD_SWEEP_INTERVAL" default:"30s"`
}

type CacheConfig struct {
	ArticlesTTL time.Duration `json:"articles_ttl" env:"CACHE_ARTICLES_TTL" default:"5m"`
	TrendingTTL time.Duration `json:"trending_ttl" env:"CACHE_TRENDING_TTL" default:"2m"`
}

type IngestConfig struct {
	Interval        time.Duration `json:"interval" env:"INGEST_INTERVAL" default:"6h"`
	Strategy        string        `json:"strategy" env:"INGEST_STRATEGY" default:"priority"`
	MinArticles     int           `json:"min_articles" env:"INGEST_MIN_ARTICLES" default:"40"`
	DailyQuota      int           `json:"daily_quota" env:"INGEST_DAILY_QUOTA" default:"200"`
	ArticleTTL      time.Duration `json:"article_ttl" env:"INGEST_ARTICLE_TTL" default:"48h"`
	MaxBatchSize    int           `json:"max_batch_size" env:"INGEST_MAX_BATCH_SIZE" default:"100"`
	MaxPayloadBytes int           `json:"max_payload_bytes" env:"INGEST_MAX_PAYLOAD_BYTES" default:"1048576"`
	SweepInterval   time.Duration `json:"sweep_interval" env:"INGEST_SWEEP_INTERVAL" default:"1h"`
	SweepPageSize   int           `json:"sweep_page_size" env:"INGEST_SWEEP_PAGE_SIZE" default:"500"`
}

type EngagementConfig struct {
	ViewWeight  int `json:"view_weight" env:"ENGAGEMENT_VIEW_WEIGHT" default:"1"`
	SaveWeight  int `json:"save_weight" env:"ENGAGEMENT_SAVE_WEIGHT" default:"5"`
	ShareWeight int `json:"share_weight" env:"ENGAGEMENT_SHARE_WEIGHT" default:"3"`
}

type APIConfig struct {
	MaxArticlesPerCall int    `json:"max_articles_per_call" env:"API_MAX_ARTICLES_PER_CALL" default:"50"`
	TrendingLimit      int    `json:"trending_limit" env:"API_TRENDING_LIMIT" default:"20"`
	BookmarkLimit      int    `json:"bookmark_limit" env:"API_BOOKMARK_LIMIT" default:"50"`
	BodyLimit          string `json:"body_limit" env:"API_BODY_LIMIT" default:"10K"`
}

// Load builds the configuration once at startup: defaults overridden by
// environment variables, then validated eagerly. The returned struct is
// passed by reference and never re-merged per request.
func Load() (*Config, error) {
	config := &Config{}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func loadFromEnv(config *Config) error {
	var err error

	// Server config
	if config.Server.Port, err = getEnvInt("SERVER_PORT", 8080); err != nil {
		return err
	}
	if config.Server.ShutdownTimeout, err = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return err
	}
	if config.Server.ReadTimeout, err = getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second); err != nil {
		return err
	}
	if config.Server.WriteTimeout, err = getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return err
	}

	// Database config
	config.Database.URL = os.Getenv("DATABASE_URL")
	maxConns, err := getEnvInt("DATABASE_MAX_CONNS", 10)
	if err != nil {
		return err
	}
	config.Database.MaxConns = int32(maxConns)
	if config.Database.ConnTimeout, err = getEnvDuration("DATABASE_CONN_TIMEOUT", 10*time.Second); err != nil {
		return err
	}
	if config.Database.QueryTimeout, err = getEnvDuration("DATABASE_QUERY_TIMEOUT", 15*time.Second); err != nil {
		return err
	}

	// Redis config
	config.Redis.URL = getEnvOrDefault("REDIS_URL", "redis://localhost:6379")

	// Auth config
	config.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	config.Auth.Issuer = getEnvOrDefault("JWT_ISSUER", "goodnews")

	// Provider config
	config.Providers.NewsDataAPIKey = os.Getenv("NEWSDATA_API_KEY")
	config.Providers.NewsDataBaseURL = getEnvOrDefault("NEWSDATA_BASE_URL", "https://newsdata.io/api/1")
	config.Providers.GNewsAPIKey = os.Getenv("GNEWS_API_KEY")
	config.Providers.GNewsBaseURL = getEnvOrDefault("GNEWS_BASE_URL", "https://gnews.io/api/v4")
	if config.Providers.Timeout, err = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return err
	}
	if config.Providers.PageSize, err = getEnvInt("PROVIDER_PAGE_SIZE", 10); err != nil {
		return err
	}
	config.Providers.Country = getEnvOrDefault("PROVIDER_COUNTRY", "us")
	config.Providers.Language = getEnvOrDefault("PROVIDER_LANGUAGE", "en")

	// Gemini config
	config.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	config.Gemini.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash")
	if config.Gemini.Timeout, err = getEnvDuration("GEMINI_TIMEOUT", 30*time.Second); err != nil {
		return err
	}

	// Retry config
	if config.Retry.MaxAttempts, err = getEnvInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return err
	}
	if config.Retry.BaseDelay, err = getEnvDuration("RETRY_BASE_DELAY", time.Second); err != nil {
		return err
	}
	if config.Retry.MaxDelay, err = getEnvDuration("RETRY_MAX_DELAY", 30*time.Second); err != nil {
		return err
	}
	if config.Retry.BackoffFactor, err = getEnvFloat("RETRY_BACKOFF_FACTOR", 2.0); err != nil {
		return err
	}
	if config.Retry.JitterFactor, err = getEnvFloat("RETRY_JITTER_FACTOR", 0.1); err != nil {
		return err
	}

	// Rate limit config
	if config.RateLimit.CallsPerMinute, err = getEnvInt("RATE_LIMIT_CALLS_PER_MINUTE", 30); err != nil {
		return err
	}
	if config.RateLimit.SweepInterval, err = getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute); err != nil {
		return err
	}

	// Concurrency guard config
	if config.Guard.Window, err = getEnvDuration("GUARD_WINDOW", 30*time.Second); err != nil {
		return err
	}
	if config.Guard.MaxConcurrent, err = getEnvInt("GUARD_MAX_CONCURRENT", 5); err != nil {
		return err
	}
	if config.Guard.SweepInterval, err = getEnvDuration("GUARD_SWEEP_INTERVAL", 30*time.Second); err != nil {
		return err
	}

	// Cache config
	if config.Cache.ArticlesTTL, err = getEnvDuration("CACHE_ARTICLES_TTL", 5*time.Minute); err != nil {
		return err
	}
	if config.Cache.TrendingTTL, err = getEnvDuration("CACHE_TRENDING_TTL", 2*time.Minute); err != nil {
		return err
	}

	// Ingest config
	if config.Ingest.Interval, err = getEnvDuration("INGEST_INTERVAL", 6*time.Hour); err != nil {
		return err
	}
	config.Ingest.Strategy = getEnvOrDefault("INGEST_STRATEGY", "priority")
	if config.Ingest.MinArticles, err = getEnvInt("INGEST_MIN_ARTICLES", 40); err != nil {
		return err
	}
	if config.Ingest.DailyQuota, err = getEnvInt("INGEST_DAILY_QUOTA", 200); err != nil {
		return err
	}
	if config.Ingest.ArticleTTL, err = getEnvDuration("INGEST_ARTICLE_TTL", 48*time.Hour); err != nil {
		return err
	}
	if config.Ingest.MaxBatchSize, err = getEnvInt("INGEST_MAX_BATCH_SIZE", 100); err != nil {
		return err
	}
	if config.Ingest.MaxPayloadBytes, err = getEnvInt("INGEST_MAX_PAYLOAD_BYTES", 1048576); err != nil {
		return err
	}
	if config.Ingest.SweepInterval, err = getEnvDuration("INGEST_SWEEP_INTERVAL", time.Hour); err != nil {
		return err
	}
	if config.Ingest.SweepPageSize, err = getEnvInt("INGEST_SWEEP_PAGE_SIZE", 500); err != nil {
		return err
	}

	// Engagement weights
	if config.Engagement.ViewWeight, err = getEnvInt("ENGAGEMENT_VIEW_WEIGHT", 1); err != nil {
		return err
	}
	if config.Engagement.SaveWeight, err = getEnvInt("ENGAGEMENT_SAVE_WEIGHT", 5); err != nil {
		return err
	}
	if config.Engagement.ShareWeight, err = getEnvInt("ENGAGEMENT_SHARE_WEIGHT", 3); err != nil {
		return err
	}

	// API config
	if config.API.MaxArticlesPerCall, err = getEnvInt("API_MAX_ARTICLES_PER_CALL", 50); err != nil {
		return err
	}
	if config.API.TrendingLimit, err = getEnvInt("API_TRENDING_LIMIT", 20); err != nil {
		return err
	}
	if config.API.BookmarkLimit, err = getEnvInt("API_BOOKMARK_LIMIT", 50); err != nil {
		return err
	}
	config.API.BodyLimit = getEnvOrDefault("API_BODY_LIMIT", "10K")

	return nil
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if config.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive: %d", config.Retry.MaxAttempts)
	}

	if config.Retry.BackoffFactor < 1.0 {
		return fmt.Errorf("retry backoff factor must be >= 1.0: %f", config.Retry.BackoffFactor)
	}

	if config.RateLimit.CallsPerMinute <= 0 {
		return fmt.Errorf("rate limit calls per minute must be positive: %d", config.RateLimit.CallsPerMinute)
	}

	if config.Guard.MaxConcurrent <= 0 {
		return fmt.Errorf("guard max concurrent must be positive: %d", config.Guard.MaxConcurrent)
	}

	switch config.Ingest.Strategy {
	case "parallel", "priority":
	default:
		return fmt.Errorf("invalid ingest strategy: %s (must be parallel or priority)", config.Ingest.Strategy)
	}

	if config.Ingest.MaxBatchSize <= 0 {
		return fmt.Errorf("ingest max batch size must be positive: %d", config.Ingest.MaxBatchSize)
	}

	if config.Ingest.SweepPageSize <= 0 {
		return fmt.Errorf("ingest sweep page size must be positive: %d", config.Ingest.SweepPageSize)
	}

	if config.Engagement.ViewWeight < 0 || config.Engagement.SaveWeight < 0 || config.Engagement.ShareWeight < 0 {
		return fmt.Errorf("engagement weights must be non-negative")
	}

	if config.API.MaxArticlesPerCall <= 0 {
		return fmt.Errorf("api max articles per call must be positive: %d", config.API.MaxArticlesPerCall)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, value)
	}
	return d, nil
}
