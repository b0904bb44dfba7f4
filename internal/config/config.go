// Package config resolves the broker configuration from environment
// variables, falling back to the compiled defaults of the original program.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the broker process.
type Config struct {
	ListenAddr string

	ProcessorDefaultURL  string
	ProcessorFallbackURL string

	DBPath     string
	DedupePath string

	MaxHandles int
	MaxWaiters int

	ProbeInterval   time.Duration
	UpstreamTimeout time.Duration

	AdminToken string
}

// Load reads the environment and returns a fully populated Config.
func Load() Config {
	return Config{
		ListenAddr:           getEnv("LISTEN_ADDR", ":9999"),
		ProcessorDefaultURL:  getEnv("PROCESSOR_DEFAULT_URL", "http://payment-processor-default:8080"),
		ProcessorFallbackURL: getEnv("PROCESSOR_FALLBACK_URL", "http://payment-processor-fallback:8080"),
		DBPath:               getEnv("DB_PATH", "data/payments.db"),
		DedupePath:           getEnv("DEDUPE_PATH", "data/dedupe.db"),
		MaxHandles:           getEnvInt("POOL_MAX_HANDLES", 10),
		MaxWaiters:           getEnvInt("POOL_MAX_WAITERS", 64),
		ProbeInterval:        getEnvDuration("HEALTH_INTERVAL", 5*time.Second),
		UpstreamTimeout:      getEnvDuration("UPSTREAM_TIMEOUT", 7*time.Second),
		AdminToken:           getEnv("ADMIN_TOKEN", "123"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
