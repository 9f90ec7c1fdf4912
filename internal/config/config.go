// Package config loads service configuration from environment variables,
// with optional .env file support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the ledger service.
type Config struct {
	// ListenAddr is the HTTP listen address, e.g. ":8080".
	ListenAddr string
	// PostgresDSN selects the Postgres store when non-empty; the in-memory
	// store is used otherwise.
	PostgresDSN string
	// MigrationsDir and SeedsDir locate SQL files for cmd/migrate.
	MigrationsDir string
	SeedsDir      string
	// RateLimitPerSecond / RateLimitBurst tune the per-IP token bucket.
	RateLimitPerSecond int
	RateLimitBurst     int
	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; a missing file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	perSecond, err := intEnv("GROOTBOEK_RATE_LIMIT_PER_SECOND", 50)
	if err != nil {
		return nil, err
	}
	burst, err := intEnv("GROOTBOEK_RATE_LIMIT_BURST", 100)
	if err != nil {
		return nil, err
	}
	maxBody, err := intEnv("GROOTBOEK_MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, err
	}

	return &Config{
		ListenAddr:         envOrDefault("GROOTBOEK_LISTEN_ADDR", ":8080"),
		PostgresDSN:        os.Getenv("GROOTBOEK_PG_DSN"),
		MigrationsDir:      envOrDefault("GROOTBOEK_MIGRATIONS_DIR", "migrations/sql"),
		SeedsDir:           envOrDefault("GROOTBOEK_SEEDS_DIR", "migrations/seeds"),
		RateLimitPerSecond: perSecond,
		RateLimitBurst:     burst,
		MaxBodyBytes:       int64(maxBody),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %q", key, v)
	}
	return parsed, nil
}
