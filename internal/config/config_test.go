package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 5, cfg.Scheduler.BatchSize)
	assert.Equal(t, time.Hour, cfg.Scheduler.StaleAfter)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.Telemetry)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.ResolvedAlerts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mysql" }},
		{"empty dsn", func(c *Config) { c.StoreDSN = "" }},
		{"http classifier without url", func(c *Config) { c.ClassifierType = "http" }},
		{"unknown classifier", func(c *Config) { c.ClassifierType = "magic" }},
		{"kafka without brokers", func(c *Config) { c.Publish.Type = "kafka" }},
		{"mqtt without broker", func(c *Config) { c.Publish.Type = "mqtt" }},
		{"unknown publisher", func(c *Config) { c.Publish.Type = "nats" }},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"zero batch", func(c *Config) { c.Scheduler.BatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Scheduler.Workers = 0 }},
		{"zero retention", func(c *Config) { c.Retention.Telemetry = 0 }},
		{"threshold above one", func(c *Config) { c.Detection.Threshold = 1.5 }},
		{"zero threshold", func(c *Config) { c.Detection.Threshold = 0 }},
		{"zero high confidence", func(c *Config) { c.Detection.HighConfidence = 0 }},
		{"high below threshold", func(c *Config) { c.Detection.HighConfidence = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "custom.yaml")
	content := `
server:
  port: 9000
  host: 127.0.0.1
scheduler:
  interval: 30s
  batch_size: 20
retention:
  telemetry: 14d
publish:
  type: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	t.Setenv("AEGIS_SERVER_HOST", "10.0.0.1")
	t.Setenv("AEGIS_SCHEDULER_STALE_AFTER", "2h")

	cfg, err := Load([]string{"--config", file, "--port", "9100"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)       // flag beats file
	assert.Equal(t, "10.0.0.1", cfg.Host) // env beats file
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 20, cfg.Scheduler.BatchSize)
	assert.Equal(t, 2*time.Hour, cfg.Scheduler.StaleAfter)
	assert.Equal(t, 14*24*time.Hour, cfg.Retention.Telemetry)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Publish.KafkaBrokers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AEGIS_RETENTION_TELEMETRY", "forever")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention.telemetry")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, splitList([]string{"a:1, b:2"}))
	assert.Nil(t, splitList(nil))
}
