package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	PasswordStoragePlaintext = "plaintext"
	PasswordStorageBcrypt    = "bcrypt"
)

type Config struct {
	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Server
	Port                 string
	CORSOrigins          string
	CORSAllowCredentials bool
	RequestTimeout       time.Duration
	RateLimitPerMinute   int

	// Registration
	PasswordStorage string

	// Observability
	LogRetentionDays int
	SentryDSN        string
	AppEnv           string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "customers_db"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		Port:                 getEnv("PORT", "8080"),
		CORSOrigins:          getEnv("CORS_ORIGINS", "http://localhost:5173"),
		CORSAllowCredentials: parseBool(getEnv("CORS_ALLOW_CREDENTIALS", "true"), true),
		RequestTimeout:       parseDuration(getEnv("REQUEST_TIMEOUT", "10s"), 10*time.Second),
		RateLimitPerMinute:   parseInt(getEnv("RATE_LIMIT_PER_MINUTE", "30"), 30),

		PasswordStorage: strings.ToLower(getEnv("PASSWORD_STORAGE", PasswordStoragePlaintext)),

		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
		SentryDSN:        getEnv("SENTRY_DSN", ""),
		AppEnv:           getEnv("APP_ENV", "development"),
	}
}

// DSN returns DATABASE_URL verbatim when set, otherwise a key/value DSN built
// from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// HasDatabaseCredentials reports whether enough is configured to reach the store.
func (c *Config) HasDatabaseCredentials() bool {
	return c.DatabaseURL != "" || c.DBPassword != ""
}

// Validate rejects settings that would otherwise fall back silently.
func (c *Config) Validate() error {
	switch c.PasswordStorage {
	case PasswordStoragePlaintext, PasswordStorageBcrypt:
		return nil
	default:
		return fmt.Errorf("PASSWORD_STORAGE must be %q or %q, got %q",
			PasswordStoragePlaintext, PasswordStorageBcrypt, c.PasswordStorage)
	}
}

func (c *Config) HashesPasswords() bool {
	return c.PasswordStorage == PasswordStorageBcrypt
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
