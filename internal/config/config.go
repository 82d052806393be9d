package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/weeklypulls/primecache/internal/ratelimiter"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
// Run-scoped knobs (budget, dry-run, force) are CLI flags, not env.
type Config struct {
	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// External catalog API
	CatalogAPIKey  string
	CatalogBaseURL string
	CatalogTimeout time.Duration

	// Outbound call spacing. The provider enforces roughly one request per
	// second; the safety margin is added on top of that, so the effective
	// gate interval is FetchBaseInterval + FetchSafetyMargin.
	FetchBaseInterval time.Duration
	FetchSafetyMargin time.Duration

	// Optional Prometheus exposition address for the lifetime of a run.
	// Empty disables the listener.
	MetricsAddr string
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		CatalogAPIKey:  os.Getenv("COMICVINE_API_KEY"),
		CatalogBaseURL: getEnv("COMICVINE_BASE_URL", "https://comicvine.gamespot.com/api"),
		CatalogTimeout: getDuration("COMICVINE_TIMEOUT", 30*time.Second),

		FetchBaseInterval: getDuration("FETCH_BASE_INTERVAL", ratelimiter.BaseInterval),
		FetchSafetyMargin: getDuration("FETCH_SAFETY_MARGIN", ratelimiter.SafetyMargin),

		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
