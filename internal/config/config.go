package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	DB    DatabaseConfig
	Redis RedisConfig
	Ginee GineeConfig
	Feed  FeedConfig
	Sync  SyncConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GineeConfig contains credentials for the Ginee marketplace API.
type GineeConfig struct {
	BaseURL   string
	AccessKey string
	SecretKey string
	Country   string
}

// FeedConfig contains the spreadsheet export source parameters.
type FeedConfig struct {
	SheetURL string
	Timeout  time.Duration
}

// SyncConfig contains reconciliation run parameters.
type SyncConfig struct {
	Interval          time.Duration
	Guard             time.Duration
	ChunkSize         int
	LockTTL           time.Duration
	RetentionInterval time.Duration
	RetentionDays     int
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Ginee marketplace
	cfg.Ginee = GineeConfig{
		BaseURL:   getEnv("GINEE_BASE_URL", "https://api.ginee.com"),
		AccessKey: getEnv("GINEE_ACCESS_KEY", ""),
		SecretKey: getEnv("GINEE_SECRET_KEY", ""),
		Country:   getEnv("GINEE_COUNTRY", "ID"),
	}

	// Spreadsheet feed
	cfg.Feed.SheetURL = getEnv("SHEET_FEED_URL", "")
	var err error
	if cfg.Feed.Timeout, err = parseDurationEnv("SHEET_FEED_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid SHEET_FEED_TIMEOUT: %w", err)
	}

	// Sync runs
	if cfg.Sync.Interval, err = parseDurationEnv("SYNC_INTERVAL", "15m"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	if cfg.Sync.Guard, err = parseDurationEnv("SYNC_GUARD", "5m"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_GUARD: %w", err)
	}
	if cfg.Sync.LockTTL, err = parseDurationEnv("SYNC_LOCK_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_LOCK_TTL: %w", err)
	}
	if cfg.Sync.RetentionInterval, err = parseDurationEnv("SYNC_LOG_RETENTION_INTERVAL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_LOG_RETENTION_INTERVAL: %w", err)
	}
	cfg.Sync.ChunkSize = getEnvInt("SYNC_CHUNK_SIZE", 200)
	if cfg.Sync.ChunkSize <= 0 {
		return nil, errors.New("SYNC_CHUNK_SIZE must be positive")
	}
	cfg.Sync.RetentionDays = getEnvInt("SYNC_LOG_RETENTION_DAYS", 30)

	// Basic validation for DB parameters.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
