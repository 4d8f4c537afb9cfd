package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	Env      string // development | production
	LogLevel string

	// Storage
	StoreDriver string
	DatabaseURL string

	// Reconciliation queue; empty RedisURL keeps it in process
	RedisURL         string
	ReconcileWorkers int

	// Auth
	JWTSecret          string
	JWTExpirationHours int
	AdminEmail         string
	AdminPassword      string

	// Dashboard
	ReportLocation *time.Location
	DefaultOwners  []string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on system env")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		Env:           getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:   DatabaseDSN(),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		DefaultOwners: splitList(os.Getenv("DEFAULT_OWNERS")),
	}

	var err error
	if cfg.ReconcileWorkers, err = getInt("RECONCILE_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.JWTExpirationHours, err = getInt("JWT_EXPIRATION_HOURS", 24); err != nil {
		return nil, err
	}

	tz := getEnv("REPORT_TIMEZONE", "UTC")
	if cfg.ReportLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE %q: %w", tz, err)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER %q: expected %s or %s", cfg.StoreDriver, StoreDriverPostgres, StoreDriverMemory)
	}

	// An empty HMAC key would make every token forgeable.
	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set when APP_ENV is production")
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// JWTExpiration is the token lifetime.
func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

// DatabaseDSN returns DATABASE_URL or builds a DSN from the DB_* variables.
func DatabaseDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
