package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// HTTP API
	HTTPAddr string

	// Postgres configuration; empty DSN selects the in-memory stores
	PostgresDSN   string
	MigrationsDir string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (fetch block cache)
	MemcacheAddr string

	// Scheduler configuration
	TickInterval time.Duration

	// Fetcher configuration
	FetchTimeout     time.Duration
	FetchRatePerHost float64

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	tickSeconds, _ := strconv.Atoi(getEnv("TICK_INTERVAL_SECONDS", "60"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "15"))
	fetchRate, _ := strconv.ParseFloat(getEnv("FETCH_RATE_PER_HOST", "1"), 64)

	return Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "campaigns"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		TickInterval:         time.Duration(tickSeconds) * time.Second,
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		FetchRatePerHost:     fetchRate,
		Environment:          getEnv("CRAWLWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the worker cannot run with
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %v", c.FetchTimeout)
	}
	if c.FetchRatePerHost <= 0 {
		return fmt.Errorf("fetch rate per host must be positive, got %v", c.FetchRatePerHost)
	}
	if c.RedisStreamCount <= 0 {
		return fmt.Errorf("redis stream count must be positive, got %d", c.RedisStreamCount)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
