package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.ModeParallel, cfg.Enrich.Mode)
	assert.Equal(t, 100, cfg.Enrich.Workers)
	assert.Equal(t, 3, cfg.Enrich.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Enrich.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Enrich.Cooldown)
	assert.Equal(t, 60*time.Second, cfg.Compare.Timeout)
	assert.Equal(t, 100, cfg.Evaluate.Limit)
}

func TestLoad_OverridesAndEnv(t *testing.T) {
	t.Setenv("RAGBENCH_SESSION", "s3cr3t")
	path := writeConfig(t, `
enrich:
  mode: serial
  retry_delay: 2s
  cooldown: 1m
checkpoint:
  backend: redis
  redis:
    addr: redis:6379
compare:
  cookies:
    session: ${RAGBENCH_SESSION}
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.ModeSerial, cfg.Enrich.Mode)
	assert.Equal(t, 2*time.Second, cfg.Enrich.RetryDelay)
	assert.Equal(t, time.Minute, cfg.Enrich.Cooldown)
	assert.Equal(t, 100, cfg.Enrich.Workers, "unset fields keep defaults")
	assert.Equal(t, "redis:6379", cfg.Checkpoint.Redis.Addr)
	assert.Equal(t, "ragbench:checkpoint", cfg.Checkpoint.Redis.Key)
	assert.Equal(t, "s3cr3t", cfg.Compare.Cookies["session"])
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "enrich:\n  wokers: 3\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wokers")
	})

	t.Run("invalid values are all reported", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "enrich:\n  mode: turbo\n  workers: 0\ncompare:\n  backend: grpc\n"))
		require.ErrorIs(t, err, config.ErrInvalid)
		msg := err.Error()
		assert.True(t, strings.Contains(msg, "turbo") && strings.Contains(msg, "workers") && strings.Contains(msg, "grpc"), msg)
	})
}

func TestValidate_Backends(t *testing.T) {
	cfg := config.Default()
	cfg.Compare.Backend = config.CompareReplay
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalid)
	cfg.Compare.ReplayFile = "debug_api_response.json"
	require.NoError(t, cfg.Validate())

	cfg.Compare.Backend = config.CompareLocal
	cfg.Embedder.Provider = "openai"
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalid)

	cfg.Embedder.Provider = config.ProviderOllama
	cfg.Checkpoint.Backend = config.CheckpointNone
	require.NoError(t, cfg.Validate())
}
