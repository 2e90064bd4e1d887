package appmanager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CavaPgc/internal/config"
	"CavaPgc/internal/logger"
)

func writeServices(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadServiceSequence(t *testing.T) {
	path := writeServices(t, `
services:
  - name: quota
    start_order: 3
    config:
      port: 9090
  - name: logger
    start_order: 1
  - name: cron
    start_order: 2
    config:
      schedule: "@every 1h"
`)
	seq, err := LoadServiceSequence(path)
	require.NoError(t, err)
	require.Len(t, seq, 3)
	assert.Equal(t, []string{"logger", "cron", "quota"}, []string{seq[0].Name, seq[1].Name, seq[2].Name})
	assert.Equal(t, 9090, seq[2].Config["port"])
}

func TestAutoRegisterAndLifecycle(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { logger.SetGlobalLogger(nil) })

	am := NewAppManager()
	unknown := am.AutoRegisterServices([]ServiceConfig{
		{Name: "logger", Config: map[string]interface{}{"folder_path": filepath.Join(dir, "logs"), "console": false}},
		{Name: "cron", Config: map[string]interface{}{"schedule": "@every 1h", "inbox_dir": filepath.Join(dir, "inbox")}},
		{Name: "fx"},
	})
	assert.Equal(t, []string{"fx"}, unknown)
	require.NotNil(t, am.GetServiceByName("cron"))
	assert.Nil(t, am.GetServiceByName("quota"))
	assert.Same(t, logger.GlobalLogger, am.GetServiceByName("logger"))

	require.NoError(t, am.StartAll())
	require.NoError(t, am.StopAll())
	assert.NotNil(t, Collector())
}

func TestWithDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.TimeZone = "UTC"
	cfg.LogFolder = "/tmp/cavapgc-logs"

	in := []ServiceConfig{
		{Name: "logger", Config: map[string]interface{}{"level": "debug"}},
		{Name: "cron", Config: map[string]interface{}{"source": "rvc"}},
		{Name: "quota"},
		{Name: "fx", Config: map[string]interface{}{"x": 1}},
	}
	out := WithDefaults(in, cfg)
	require.Len(t, out, 4)

	assert.Equal(t, "/tmp/cavapgc-logs", out[0].Config["folder_path"])
	assert.Equal(t, "debug", out[0].Config["level"])
	assert.Equal(t, "UTC", out[1].Config["time_zone"])
	assert.Equal(t, "rvc", out[1].Config["source"])
	assert.Equal(t, config.DefaultSource, out[2].Config["source"])
	assert.Equal(t, map[string]interface{}{"x": 1}, out[3].Config)
	assert.Nil(t, in[2].Config)
}
