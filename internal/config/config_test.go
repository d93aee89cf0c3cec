package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "auto", cfg.Checkout.CommitStrategy)
	assert.Equal(t, StorePostgres, cfg.Checkout.StoreBackend)
	assert.Equal(t, 2*time.Minute, cfg.Reaper.TTL)
	assert.Equal(t, time.Minute, cfg.Reaper.Interval)
	assert.Equal(t, cfg.Reaper.TTL, cfg.Checkout.HoldTTL)
	assert.False(t, cfg.Reaper.InProcess)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COMMIT_STRATEGY", "cas")
	t.Setenv("STORE_BACKEND", StoreMemory)
	t.Setenv("REAPER_TTL_MINUTES", "5")
	t.Setenv("REAPER_INTERVAL_SECONDS", "10")
	t.Setenv("REAPER_IN_PROCESS", "true")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, "cas", cfg.Checkout.CommitStrategy)
	assert.Equal(t, StoreMemory, cfg.Checkout.StoreBackend)
	assert.Equal(t, 5*time.Minute, cfg.Reaper.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Checkout.HoldTTL)
	assert.Equal(t, 10*time.Second, cfg.Reaper.Interval)
	assert.True(t, cfg.Reaper.InProcess)
	assert.Equal(t, 5432, cfg.Database.Port)
}
