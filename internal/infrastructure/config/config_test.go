package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.OpsPort)
	assert.Equal(t, "migrations", cfg.MigrationsPath)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, time.Second, cfg.ReaperInterval)
	assert.Equal(t, 100, cfg.ReaperBatchSize)
	assert.Equal(t, int32(0), cfg.CodeMin)
	assert.Equal(t, int32(0), cfg.CodeMax)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OPS_PORT", "8088")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("IDEMPOTENCY_TTL", "1h")
	t.Setenv("TRANSFER_CODE_MIN", "100")
	t.Setenv("TRANSFER_CODE_MAX", "999")
	t.Setenv("REAPER_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.OpsPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, int32(100), cfg.CodeMin)
	assert.Equal(t, int32(999), cfg.CodeMax)
	assert.Equal(t, 250*time.Millisecond, cfg.ReaperInterval)
}
