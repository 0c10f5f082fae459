// Package config loads environment driven configuration for the planning
// engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the planning
// engine.
type Config struct {
	SQLiteDSN    string
	SiteID       string
	CacheTTL     time.Duration
	CacheEntries int
	LogLevel     string
}

// Load parses configuration from the current process environment. A .env
// file in the working directory is merged in first without overriding
// variables already set.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		SQLiteDSN:    "file:blocplanning.db",
		CacheTTL:     30 * time.Second,
		CacheEntries: 128,
		LogLevel:     "info",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("BLOC_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if site := strings.TrimSpace(os.Getenv("BLOC_SITE_ID")); site == "" {
		missing = append(missing, "BLOC_SITE_ID")
	} else {
		cfg.SiteID = site
	}

	if ttlValue := strings.TrimSpace(os.Getenv("BLOC_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BLOC_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if entriesValue := strings.TrimSpace(os.Getenv("BLOC_CACHE_ENTRIES")); entriesValue != "" {
		entries, err := strconv.Atoi(entriesValue)
		if err != nil || entries <= 0 {
			invalid = append(invalid, "BLOC_CACHE_ENTRIES")
		} else {
			cfg.CacheEntries = entries
		}
	}

	if level := strings.TrimSpace(os.Getenv("BLOC_LOG_LEVEL")); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "BLOC_LOG_LEVEL")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
