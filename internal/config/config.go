package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds service configuration.
type Config struct {
	ServerAddr        string
	StoreDriver       string
	DatabaseURL       string
	AnalyzerURL       string
	MaxAttempts       int
	RetryDelay        time.Duration
	RetentionLimit    int
	SessionTTL        time.Duration
	SessionCookieName string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	driver := getenv("STORE_DRIVER", "memory")
	if driver != "memory" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" && driver == "postgres" {
		user := getenv("POSTGRES_USER", "ledgerpilot")
		pass := getenv("POSTGRES_PASSWORD", "ledgerpilot_pass")
		db := getenv("POSTGRES_DB", "ledgerpilot")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	return &Config{
		ServerAddr:        getenv("SERVER_ADDR", "0.0.0.0:8080"),
		StoreDriver:       driver,
		DatabaseURL:       dsn,
		AnalyzerURL:       getenv("ANALYZER_URL", ""),
		MaxAttempts:       parseInt(getenv("AGENT_MAX_ATTEMPTS", "3"), 3),
		RetryDelay:        parseDuration(getenv("AGENT_RETRY_DELAY", "0s"), 0),
		RetentionLimit:    parseInt(getenv("EXECUTION_RETENTION", "1000"), 1000),
		SessionTTL:        parseDuration(getenv("SESSION_TTL", "24h"), 24*time.Hour),
		SessionCookieName: getenv("SESSION_COOKIE_NAME", "ledgerpilot_session"),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
