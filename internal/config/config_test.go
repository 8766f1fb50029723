package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "ward.yaml"))
	require.NoError(t, err)
	require.True(t, cfg.Interactive)
	require.True(t, cfg.Color)
	require.Equal(t, 2*time.Minute, cfg.DefaultTimeout)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, ".", cfg.Workspace)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ward.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interactive: false
color: false
workspace: /srv/work
default_timeout: 30s
log_level: debug
tool_timeouts:
  shell: 5m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Interactive)
	require.False(t, cfg.Color)
	require.Equal(t, "/srv/work", cfg.Workspace)
	require.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 5*time.Minute, cfg.ToolTimeouts["shell"])
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ward.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interactive: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadZeroTimeoutFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ward.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_timeout: 0s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, cfg.DefaultTimeout)
}
