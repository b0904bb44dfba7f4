package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "http://payment-processor-default:8080", cfg.ProcessorDefaultURL)
	assert.Equal(t, "http://payment-processor-fallback:8080", cfg.ProcessorFallbackURL)
	assert.Equal(t, 5*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 7*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "123", cfg.AdminToken)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":8081")
	t.Setenv("POOL_MAX_HANDLES", "3")
	t.Setenv("HEALTH_INTERVAL", "250ms")

	cfg := Load()

	assert.Equal(t, ":8081", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.MaxHandles)
	assert.Equal(t, 250*time.Millisecond, cfg.ProbeInterval)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("POOL_MAX_HANDLES", "zero")
	t.Setenv("UPSTREAM_TIMEOUT", "-1s")

	cfg := Load()

	assert.Equal(t, 10, cfg.MaxHandles)
	assert.Equal(t, 7*time.Second, cfg.UpstreamTimeout)
}
