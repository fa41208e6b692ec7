package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WORKFORCE_HOST", "")
	t.Setenv("WORKFORCE_PORT", "")
	t.Setenv("WORKFORCE_URL", "")
	t.Setenv("WORKFORCE_LOG_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, 8787, cfg.Port)
	require.Equal(t, "http://127.0.0.1:8787", cfg.URL)
	require.Equal(t, filepath.Join(cfg.DataDir, "server.pid"), cfg.PIDFile())
	require.Equal(t, filepath.Join(cfg.DataDir, "server.lock"), cfg.LockFile())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WORKFORCE_HOST", "0.0.0.0")
	t.Setenv("WORKFORCE_PORT", "9000")
	t.Setenv("WORKFORCE_SKIP_LOCK", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 9000, cfg.Port)
	require.True(t, cfg.SkipLock)
	require.Equal(t, "http://0.0.0.0:9000", cfg.URL)
}

func TestLoad_XDGDirsRespected(t *testing.T) {
	dataHome := t.TempDir()
	cacheHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv("XDG_CACHE_HOME", cacheHome)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dataHome, "workforce"), cfg.DataDir)
	require.Equal(t, filepath.Join(cacheHome, "workforce"), cfg.CacheDir)
}
