package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Monitor.IntervalMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Interval())
	assert.Equal(t, 30*time.Second, cfg.Monitor.ShutdownTimeout())
	assert.Equal(t, 4.0, cfg.SLA.CriticalHours)
	assert.Equal(t, 8.0, cfg.SLA.HighHours)
	assert.Equal(t, 24.0, cfg.SLA.MediumHours)
	assert.Equal(t, 48.0, cfg.SLA.LowHours)
	assert.Empty(t, cfg.Notification.KafkaBrokers)
}

func TestLoadFileOverlay(t *testing.T) {
	withConfigFile(t, `
monitor:
  interval_minutes: 2
  run_on_start: true
sla:
  critical_hours: 1.5
  low_hours: 72
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Monitor.IntervalMinutes)
	assert.True(t, cfg.Monitor.RunOnStart)
	assert.Equal(t, 1.5, cfg.SLA.CriticalHours)
	assert.Equal(t, 8.0, cfg.SLA.HighHours)
	assert.Equal(t, 72.0, cfg.SLA.LowHours)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	withConfigFile(t, `
monitor:
  interval_minutes: 2
sla:
  critical_hours: 1.5
`)
	t.Setenv("SLA_CHECK_INTERVAL_MINUTES", "10")
	t.Setenv("SLA_CRITICAL_HOURS", "3")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Monitor.Interval())
	assert.Equal(t, 3.0, cfg.SLA.CriticalHours)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notification.KafkaBrokers)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	withConfigFile(t, "monitor: [not, a, map")

	_, err := Load()
	assert.Error(t, err)
}

func TestMonitorIntervalFloor(t *testing.T) {
	assert.Equal(t, time.Minute, MonitorConfig{IntervalMinutes: 0}.Interval())
	assert.Equal(t, time.Minute, MonitorConfig{IntervalMinutes: -3}.Interval())
}
