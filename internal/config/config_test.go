package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("QUOTA_UTILIZATION_LIMIT_PERCENT", "95")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, uint64(95), cfg.Quota.UtilizationLimitPercent)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadIgnoresNegativeNumbers(t *testing.T) {
	t.Setenv("QUOTA_UTILIZATION_ALERT_PERCENT", "-5")

	cfg := Load()

	assert.Equal(t, uint64(90), cfg.Quota.UtilizationAlertPercent)
}

func TestRelayConfigDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewRelayConfigHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultRelayConfig(), holder.Get())
}

func TestRelayConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "relay:\n  batchSize: 10\n  pollInterval: 5s\n  ratePerSecond: 3\n  paused: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.yml"), []byte(content), 0o600))

	holder, err := NewRelayConfigHolder(zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 10, got.BatchSize)
	assert.Equal(t, 5*time.Second, got.PollInterval)
	assert.Equal(t, 3, got.RatePerSecond)
	assert.True(t, got.Paused)
}

func TestRelayConfigRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.yml"), []byte("relay:\n  batchSize: 0\n"), 0o600))

	_, err := NewRelayConfigHolder(zap.NewNop())
	assert.Error(t, err)
}
