package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, "maskd.yaml"), []byte(content), 0644)
	require.NoError(t, err)
}

func TestInitialize(t *testing.T) {
	configDir := t.TempDir()
	writeConfigFile(t, configDir, `
http:
  port: 9090

queue:
  worker_count: 3
  poll_interval: 2s

retention:
  job_retention_days: 7

masking:
  text_scrub:
    groups: ["contact"]
  custom_patterns:
    - name: employee_id
      pattern: 'EMP-[0-9]{6}'
      replacement: '***EMP***'
      description: Internal employee IDs
  field_overrides:
    personal:
      nickname: name
`)

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 3, cfg.Queue.WorkerCount)
	assert.Equal(t, 2*time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, 7, cfg.Retention.JobRetentionDays)

	// Unset values keep their defaults after the merge.
	assert.Equal(t, DefaultQueueConfig().BatchSize, cfg.Queue.BatchSize)
	assert.Equal(t, DefaultQueueConfig().OrphanThreshold, cfg.Queue.OrphanThreshold)
	assert.Equal(t, DefaultRetentionConfig().CleanupInterval, cfg.Retention.CleanupInterval)

	require.Len(t, cfg.Masking.CustomPatterns, 1)
	assert.Equal(t, "employee_id", cfg.Masking.CustomPatterns[0].Name)
	assert.Equal(t, "name", cfg.Masking.FieldOverrides.Personal["nickname"])

	stats := cfg.Stats()
	assert.Equal(t, 1, stats.CustomPatterns)
	assert.Equal(t, 1, stats.FieldOverrides)
	assert.Greater(t, stats.ScrubPatterns, 0)
}

func TestInitializeWithoutConfigFile(t *testing.T) {
	// No maskd.yaml at all: everything falls back to built-in defaults.
	ctx := context.Background()
	cfg, err := Initialize(ctx, t.TempDir())

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultHTTPConfig().Port, cfg.HTTP.Port)
	assert.Equal(t, DefaultQueueConfig().WorkerCount, cfg.Queue.WorkerCount)
	assert.Equal(t, DefaultRetentionConfig().JobRetentionDays, cfg.Retention.JobRetentionDays)
	assert.NotNil(t, cfg.Masking)
}

func TestInitializeInvalidYAML(t *testing.T) {
	configDir := t.TempDir()
	writeConfigFile(t, configDir, `{{{`)

	ctx := context.Background()
	_, err := Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeValidationFailure(t *testing.T) {
	configDir := t.TempDir()
	writeConfigFile(t, configDir, `
masking:
  custom_patterns:
    - name: broken
      pattern: 'EMP-[0-9'
      replacement: '***EMP***'
`)

	ctx := context.Background()
	_, err := Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "broken")
}

func TestInitializeRejectsBadPort(t *testing.T) {
	configDir := t.TempDir()
	writeConfigFile(t, configDir, `
http:
  port: 99999
`)

	ctx := context.Background()
	_, err := Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadYAMLExpandsEnvironment(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("MASKD_EMPLOYEE_PATTERN", `EMP-[0-9]{6}`)
	writeConfigFile(t, configDir, `
masking:
  custom_patterns:
    - name: employee_id
      pattern: '{{.MASKD_EMPLOYEE_PATTERN}}'
      replacement: '***EMP***'
`)

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	require.Len(t, cfg.Masking.CustomPatterns, 1)
	assert.Equal(t, `EMP-[0-9]{6}`, cfg.Masking.CustomPatterns[0].Pattern)
}

func TestInitializeRejectsSlowHeartbeat(t *testing.T) {
	// A heartbeat at or beyond the orphan threshold would make every
	// running job look orphaned.
	configDir := t.TempDir()
	writeConfigFile(t, configDir, `
queue:
  heartbeat_interval: 10m
  orphan_threshold: 5m
`)

	ctx := context.Background()
	_, err := Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat_interval")
}
