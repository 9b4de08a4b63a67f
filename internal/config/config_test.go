package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("OPS_BACKEND_URL", "")
	t.Setenv("MODEL_RETRY_MAX_ATTEMPTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.Model.Provider)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay())
	assert.Equal(t, 8*time.Second, cfg.Retry.MaxDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.MaxJitter())
	assert.Equal(t, 1, cfg.Batch.Concurrency)
	assert.Empty(t, cfg.Backend.URL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, 5*time.Second, cfg.Notification.WebhookTimeout())
}

func TestLoad_ModelKeyFallsBackToProviderVariable(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "Anthropic")
	t.Setenv("MODEL_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "sk-ant-test", cfg.Model.APIKey)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MalformedNumbersUseDefaults(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "many")
	t.Setenv("PROCESS_OPEN_ONLY", "yes please")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Batch.Concurrency)
	assert.False(t, cfg.Batch.OpenOnly)
}
