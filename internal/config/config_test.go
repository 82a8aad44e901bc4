package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8008", cfg.Server.Listen)
	require.Equal(t, "/ws", cfg.Server.WSPath)
	require.Equal(t, 256, cfg.Realtime.SendBuffer)
	require.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
	require.Equal(t, 5*time.Minute, cfg.Inventory.ReconcileInterval)
	require.False(t, cfg.Inventory.AllowBackorder)
	require.Equal(t, 5, cfg.Client.MaxAttempts)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
server:
  listen: ":9000"
inventory:
  allow_backorder: true
  reconcile_interval: 30s
realtime:
  send_buffer: 8
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("INVSYNC_SERVER_LISTEN", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Server.Listen)
	require.True(t, cfg.Inventory.AllowBackorder)
	require.Equal(t, 30*time.Second, cfg.Inventory.ReconcileInterval)
	require.Equal(t, 8, cfg.Realtime.SendBuffer)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_BadWSPath(t *testing.T) {
	t.Setenv("INVSYNC_SERVER_WS_PATH", "ws")
	_, err := Load("")
	require.Error(t, err)
}
