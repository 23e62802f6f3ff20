package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vendstack/vendingmachine/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "vendingmachine", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, config.BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "memory://", cfg.StoolapDSN)
	assert.False(t, cfg.SeedDemoCatalog)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("SHUTDOWN_TIMEOUT", "3")
	t.Setenv("STORE_BACKEND", config.BackendStoolap)
	t.Setenv("STOOLAP_DSN", "file:///tmp/vending")
	t.Setenv("SEED_DEMO_CATALOG", "true")

	cfg := config.Load()

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, config.BackendStoolap, cfg.StoreBackend)
	assert.Equal(t, "file:///tmp/vending", cfg.StoolapDSN)
	assert.True(t, cfg.SeedDemoCatalog)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	t.Setenv("SEED_DEMO_CATALOG", "perhaps")

	cfg := config.Load()

	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.SeedDemoCatalog)
}
