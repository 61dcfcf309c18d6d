package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	LogLevel        slog.Level
	RedisURL        string
	DataDir         string
	SessionTTL      time.Duration
	AnalyticsBuffer int           // Events held for async delivery before dropping
	FeedbackDelay   time.Duration // Quiz feedback pause used by interactive players
	WorkerID        string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		WorkerID:    os.Getenv("WORKER_ID"),
	}

	var err error
	if cfg.SessionTTL, err = parseDuration("SESSION_TTL", "1h"); err != nil {
		return nil, err
	}
	if cfg.FeedbackDelay, err = parseDuration("FEEDBACK_DELAY", "1500ms"); err != nil {
		return nil, err
	}
	if cfg.AnalyticsBuffer, err = parseInt("ANALYTICS_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.AnalyticsBuffer < 1 {
		return nil, fmt.Errorf("ANALYTICS_BUFFER must be at least 1, got %d", cfg.AnalyticsBuffer)
	}
	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
