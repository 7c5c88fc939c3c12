package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()

	content := `
server:
  host: 127.0.0.1
  port: 9000
game:
  countdown_seconds: 3
  signal_window_ms: 1500
  idle_timeout_min: 2
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Game.CountdownSeconds)
	assert.Equal(t, 1500*time.Millisecond, cfg.Game.SignalWindow())
	assert.Equal(t, 2*time.Minute, cfg.Game.IdleTimeout())

	// omitted fields fall back to defaults
	assert.Equal(t, 60*time.Second, cfg.Game.SweepInterval())
	assert.Equal(t, 10, cfg.Game.WinPoints)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Game.CountdownSeconds)
	assert.Equal(t, 3*time.Second, cfg.Game.SignalWindow())
}
