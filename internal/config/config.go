// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// BackendMemory keeps all state in process memory.
	BackendMemory = "memory"
	// BackendStoolap persists state in an embedded stoolap database.
	BackendStoolap = "stoolap"
)

// Config holds configuration knobs for the HTTP server and the entity store.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	ServiceName     string
	Env             string
	StoreBackend    string
	StoolapDSN      string
	SeedDemoCatalog bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenvs(key string, defSec int) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return time.Duration(defSec) * time.Second
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		return time.Duration(defSec) * time.Second
	}
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 10),
		ServiceName:     getenv("SERVICE_NAME", "vendingmachine"),
		Env:             getenv("ENV", "dev"),
		StoreBackend:    getenv("STORE_BACKEND", BackendMemory),
		StoolapDSN:      getenv("STOOLAP_DSN", "memory://"),
		SeedDemoCatalog: boolenv("SEED_DEMO_CATALOG", false),
	}
}
