// Package config provides runtime configuration for the repricing engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	SyncModeLeader = "leader"
	SyncModeShard  = "shard"
)

// Config holds every knob the engine reads. All keys are environment
// variables with defaults; an instance is fully described by its index,
// count and connection strings.
type Config struct {
	InstanceIndex int
	InstanceCount int
	IDIsUUID      bool

	MaxConcurrent  int
	DemperInterval time.Duration // pause between cycles
	CheckInterval  time.Duration // staleness threshold for due items
	BatchSize      int
	MinDelay       time.Duration // per-item jitter bounds
	MaxDelay       time.Duration
	SyncStoresMode string

	MySQLDSN           string
	RedisAddr          string
	MarketplaceBaseURL string
	OutboundRPS        float64 // 0 = unlimited
	HTTPTimeout        time.Duration
	MetricsAddr        string        // empty disables the metrics endpoint
	SessionTTL         time.Duration // expiry for sessions written by the login automation
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolenv(key string, def bool) bool {
	v := os.Getenv(key)
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
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func durenvsf(key string, defSec float64) time.Duration {
	sec := floatenv(key, defSec)
	return time.Duration(sec * float64(time.Second))
}

func durenvh(key string, defHours int) time.Duration {
	hours := atoienv(key, defHours)
	return time.Duration(hours) * time.Hour
}

// Load collects configuration from the environment and validates the
// instance topology.
func Load() (Config, error) {
	cfg := Config{
		InstanceIndex: atoienv("INSTANCE_INDEX", 0),
		InstanceCount: atoienv("INSTANCE_COUNT", 1),
		IDIsUUID:      boolenv("ID_IS_UUID", false),

		MaxConcurrent:  atoienv("MAX_CONCURRENT_TASKS", 15),
		DemperInterval: durenvs("DEMPER_INTERVAL", 30),
		CheckInterval:  durenvs("CHECK_INTERVAL_SECONDS", 30),
		BatchSize:      atoienv("BATCH_SIZE", 500),
		MinDelay:       durenvsf("MIN_PRODUCT_DELAY", 0.3),
		MaxDelay:       durenvsf("MAX_PRODUCT_DELAY", 0.8),
		SyncStoresMode: getenv("SYNC_STORES_MODE", SyncModeLeader),

		MySQLDSN:           getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/repricer?parseTime=true"),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		MarketplaceBaseURL: getenv("MARKETPLACE_BASE_URL", "http://localhost:8081"),
		OutboundRPS:        floatenv("OUTBOUND_RPS", 0),
		HTTPTimeout:        durenvs("HTTP_TIMEOUT_SECONDS", 15),
		MetricsAddr:        getenv("METRICS_ADDR", ":9090"),
		SessionTTL:         durenvh("SESSION_TTL_HOURS", 12),
	}

	if cfg.InstanceCount < 1 {
		return Config{}, fmt.Errorf("INSTANCE_COUNT must be >= 1, got %d", cfg.InstanceCount)
	}
	if cfg.InstanceIndex < 0 || cfg.InstanceIndex >= cfg.InstanceCount {
		return Config{}, fmt.Errorf("INSTANCE_INDEX %d out of range [0, %d)", cfg.InstanceIndex, cfg.InstanceCount)
	}
	if cfg.MaxConcurrent < 1 {
		return Config{}, fmt.Errorf("MAX_CONCURRENT_TASKS must be >= 1, got %d", cfg.MaxConcurrent)
	}
	if cfg.BatchSize < 1 {
		return Config{}, fmt.Errorf("BATCH_SIZE must be >= 1, got %d", cfg.BatchSize)
	}
	if cfg.MaxDelay < cfg.MinDelay {
		return Config{}, fmt.Errorf("MAX_PRODUCT_DELAY %s is below MIN_PRODUCT_DELAY %s", cfg.MaxDelay, cfg.MinDelay)
	}
	if cfg.SyncStoresMode != SyncModeLeader && cfg.SyncStoresMode != SyncModeShard {
		return Config{}, fmt.Errorf("SYNC_STORES_MODE must be %q or %q, got %q", SyncModeLeader, SyncModeShard, cfg.SyncStoresMode)
	}

	return cfg, nil
}
