package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret     []byte
	JWTExpiration time.Duration

	LogLevel  string
	LogPretty bool

	// RedisURL is optional; without it diff results are not cached.
	RedisURL string

	DiffProvider  string // openai, local or none
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	DiffTimeout   time.Duration
	DiffCacheTTL  time.Duration

	// ArchiveDir is optional; without it versions are not mirrored to git.
	ArchiveDir string
}

func Load() Config {
	return Config{
		Port:          getenv("PORT", "8080"),
		DBHost:        getenv("DB_HOST", "localhost"),
		DBPort:        getenv("DB_PORT", "5432"),
		DBUser:        getenv("DB_USER", "postgres"),
		DBPassword:    getenv("DB_PASSWORD", "postgres"),
		DBName:        getenv("DB_NAME", "grc_portal"),
		DBSSLMode:     getenv("DB_SSLMODE", "disable"),
		JWTSecret:     []byte(getenv("JWT_SECRET", "your-secret-key-change-this-in-production")),
		JWTExpiration: time.Duration(getenvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogPretty:     getenvBool("LOG_PRETTY", false),
		RedisURL:      getenv("REDIS_URL", ""),
		DiffProvider:  strings.ToLower(getenv("DIFF_PROVIDER", "local")),
		OpenAIAPIKey:  getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getenv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4o-mini"),
		DiffTimeout:   time.Duration(getenvInt("DIFF_TIMEOUT_SECONDS", 15)) * time.Second,
		DiffCacheTTL:  time.Duration(getenvInt("DIFF_CACHE_TTL_SECONDS", 86400)) * time.Second,
		ArchiveDir:    getenv("ARCHIVE_DIR", ""),
	}
}

// DSN builds the PostgreSQL connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
