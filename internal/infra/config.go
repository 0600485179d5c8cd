package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Credential backends selectable through CREDENTIAL_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	ImageAPIBaseURL   string
	ImageAPITimeout   time.Duration
	DefaultModel      string
	CredentialBackend string
	CredentialDir     string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	MaxMaskBytes      int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		ImageAPIBaseURL:   strings.TrimRight(getEnv("IMAGE_API_BASE_URL", "https://api.venice.ai/api/v1"), "/"),
		ImageAPITimeout:   time.Second * time.Duration(getEnvInt("IMAGE_API_TIMEOUT_SECONDS", 120)),
		DefaultModel:      getEnv("DEFAULT_MODEL", "fluently-xl"),
		CredentialBackend: strings.ToLower(getEnv("CREDENTIAL_BACKEND", BackendFile)),
		CredentialDir:     getEnv("CREDENTIAL_DIR", "./data"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MaxMaskBytes:      int64(getEnvInt("MAX_MASK_BYTES", 10<<20)),
	}

	switch cfg.CredentialBackend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres credential backend")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required for the redis credential backend")
		}
	default:
		return nil, fmt.Errorf("unsupported CREDENTIAL_BACKEND %q", cfg.CredentialBackend)
	}

	if strings.TrimSpace(cfg.DefaultModel) == "" {
		return nil, fmt.Errorf("DEFAULT_MODEL must not be blank")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
