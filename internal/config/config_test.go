package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGlobalConfigDefaults(t *testing.T) {
	cfg, err := LoadGlobalConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMinRecheckSeconds, cfg.Scheduler.MinRecheckSeconds)
	assert.Equal(t, DefaultQueueCeiling, cfg.Scheduler.QueueCeiling)
	assert.Equal(t, DefaultWorkerCount, cfg.Worker.Count)
	assert.Equal(t, DefaultPoolStrategy, cfg.Worker.PoolStrategy)
	assert.Equal(t, DefaultFetchBackend, cfg.Fetch.DefaultBackend)
}

func TestLoadGlobalConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
scheduler_config:
  recheck_interval_seconds: 120
  queue_ceiling: 50
worker_config:
  count: 3
  pool_strategy: tasks
proxies:
  - name: eu-proxy
    url: http://proxy.example:3128
    reuse_time_minimum: 30
default_proxy: eu-proxy
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadGlobalConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Scheduler.RecheckIntervalSeconds)
	assert.Equal(t, 50, cfg.Scheduler.QueueCeiling)
	assert.Equal(t, 3, cfg.Worker.Count)
	assert.Equal(t, "tasks", cfg.Worker.PoolStrategy)

	proxy := cfg.ProxyByName("eu-proxy")
	require.NotNil(t, proxy)
	assert.Equal(t, 30, proxy.ReuseTimeMinimum)
	assert.Nil(t, cfg.ProxyByName("missing"))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvMinRecheckSeconds, "5")
	t.Setenv(EnvWorkerCount, "7")

	cfg, err := LoadGlobalConfig("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Scheduler.MinRecheckSeconds)
	assert.Equal(t, 7, cfg.Worker.Count)
}

func TestValidateConfigRejections(t *testing.T) {
	cfg := NewDefaultGlobalConfig()
	cfg.Worker.PoolStrategy = "fibers"
	err := ValidateConfig(cfg)
	assert.Error(t, err)

	cfg = NewDefaultGlobalConfig()
	cfg.Proxies = []models.ProxyDescriptor{
		{Name: "a", URL: "http://p1"},
		{Name: "a", URL: "http://p2"},
	}
	err = ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate proxy name")

	cfg = NewDefaultGlobalConfig()
	cfg.DefaultProxy = "ghost"
	assert.Error(t, ValidateConfig(cfg))

	cfg = NewDefaultGlobalConfig()
	cfg.Scheduler.RecheckIntervalSeconds = 5
	cfg.Scheduler.MinRecheckSeconds = 20
	assert.Error(t, ValidateConfig(cfg), "interval below floor must be rejected")
}
