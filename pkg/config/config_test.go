package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/lookout/pkg/log"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(EnvWorkerURL, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Worker.URL)
	assert.Equal(t, "127.0.0.1:9090", cfg.API.Addr)
	assert.Equal(t, "https://ntfy.sh", cfg.Notify.BaseURL)
	assert.Equal(t, "default", cfg.Notify.Priority)
	assert.Equal(t, 5*time.Second, cfg.Policy.SteadyInterval)
	assert.Equal(t, 5, cfg.Policy.RapidTicks)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv(EnvWorkerURL, "")
	path := writeConfig(t, `
worker:
  url: http://10.0.0.5:5000
  token: secret
log:
  level: debug
  json: true
notify:
  topic: garage-cam
policy:
  steady_interval: 10s
  rapid_ticks: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:5000", cfg.Worker.URL)
	assert.Equal(t, "secret", cfg.Worker.Token)
	assert.Equal(t, log.DebugLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.JSONOutput)
	assert.Equal(t, "garage-cam", cfg.Notify.Topic)
	assert.Equal(t, "https://ntfy.sh", cfg.Notify.BaseURL, "unset keys keep defaults")
	assert.Equal(t, 10*time.Second, cfg.Policy.SteadyInterval)
	assert.Equal(t, 3, cfg.Policy.RapidTicks)
	assert.Equal(t, 15*time.Second, cfg.Policy.StartTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv(EnvWorkerURL, "https://worker.example.com")
	t.Setenv(EnvWorkerToken, "from-env")
	path := writeConfig(t, "worker:\n  url: http://localhost:5000\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://worker.example.com", cfg.Worker.URL)
	assert.Equal(t, "from-env", cfg.Worker.Token)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvWorkerURL, "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "explicit path must exist")

	_, err = Load(writeConfig(t, "worker: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "worker:\n  url: localhost:5000\n"))
	assert.ErrorContains(t, err, "http(s) URL")
}
