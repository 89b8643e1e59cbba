package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestFromEnv_MemoryDriverDefaults(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORAGE_DRIVER", "memory")
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_ENABLED", "")
    t.Setenv("HOLD_DURATION", "")
    t.Setenv("HOLD_SWEEP_INTERVAL", "")
    t.Setenv("ADMIN_EMAIL", "")

    cfg, err := FromEnv()
    require.NoError(t, err)
    assert.Equal(t, DriverMemory, cfg.StorageDriver)
    assert.Equal(t, 5*time.Minute, cfg.HoldDuration)
    assert.Zero(t, cfg.HoldSweepInterval)
    assert.False(t, cfg.AMQPEnabled)
    assert.Empty(t, cfg.DBHost)
}

func TestFromEnv_ReportsEveryMissingVariable(t *testing.T) {
    t.Setenv("JWT_SECRET", "")
    t.Setenv("STORAGE_DRIVER", "mysql")
    t.Setenv("DB_USER", "")
    t.Setenv("DB_HOST", "")
    t.Setenv("DB_PORT", "")
    t.Setenv("DB_NAME", "")

    _, err := FromEnv()
    require.Error(t, err)
    for _, key := range []string{"JWT_SECRET", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
        assert.Contains(t, err.Error(), key)
    }
}

func TestFromEnv_Validation(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORAGE_DRIVER", "postgres")
    t.Setenv("AMQP_ENABLED", "true")
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("HOLD_DURATION", "-1m")

    _, err := FromEnv()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "STORAGE_DRIVER")
    assert.Contains(t, err.Error(), "AMQP_ENABLED requires RABBITMQ_URL")
    assert.Contains(t, err.Error(), "HOLD_DURATION")
}

func TestLoadHoldRateLimitConfig(t *testing.T) {
    t.Setenv("HOLD_RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_PREFIX", "rl")

    cfg := LoadHoldRateLimitConfig()
    assert.Equal(t, 1, cfg.Capacity)
    assert.Equal(t, "user", cfg.KeyStrategy)
    assert.Equal(t, "rl:hold", cfg.Prefix)
    assert.GreaterOrEqual(t, cfg.TTL, 5*cfg.RefillInterval)
}
