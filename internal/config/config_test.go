package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("PENALTY_REPEAT_WINDOW_DAYS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 7*24*time.Hour, cfg.Penalty.RepeatWindow())
	assert.Equal(t, 24*time.Hour, cfg.Penalty.LateCancelWindow())
	assert.Equal(t, "0 0 1 1,4,7,10 *", cfg.Scheduler.QuarterlyResetSpec)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("PENALTY_REPEAT_WINDOW_DAYS", "14")
	t.Setenv("PENALTY_LATE_CANCEL_HOURS", "12")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, 14*24*time.Hour, cfg.Penalty.RepeatWindow())
	assert.Equal(t, 12*time.Hour, cfg.Penalty.LateCancelWindow())
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestFallbackOnMalformedInt(t *testing.T) {
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}
