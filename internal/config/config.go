// Package config loads settings from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv        string
	Port          string
	RedisURL      string
	DatabaseURL   string
	AdminPassword string
	SessionSecret string
	LogLevel      string
	LogFormat     string

	VoteLimitPerWindow int
	VoteWindow         time.Duration
	TallyCacheTTL      time.Duration
	MaxDisplayClients  int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		RedisURL:      getEnv("REDIS_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.VoteLimitPerWindow, err = getEnvInt("VOTE_LIMIT_PER_WINDOW", 10); err != nil {
		return nil, err
	}
	if cfg.VoteWindow, err = getEnvDuration("VOTE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.TallyCacheTTL, err = getEnvDuration("TALLY_CACHE_TTL", 25*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxDisplayClients, err = getEnvInt("MAX_DISPLAY_CLIENTS", 50); err != nil {
		return nil, err
	}

	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.VoteLimitPerWindow < 1 {
		return nil, fmt.Errorf("VOTE_LIMIT_PER_WINDOW must be at least 1")
	}
	if cfg.VoteWindow <= 0 {
		return nil, fmt.Errorf("VOTE_WINDOW must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
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
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"30s\": %w", key, err)
	}
	return parsed, nil
}
