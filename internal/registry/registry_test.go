package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_SamePathReusesContext(t *testing.T) {
	cacheRoot := t.TempDir()
	dataRoot := t.TempDir()
	reg := New(cacheRoot, filepath.Join(dataRoot, "events.log"), 0, nil)

	workfile := filepath.Join(t.TempDir(), "flow.graphml")
	e1, err := reg.GetOrCreate(workfile, true)
	require.NoError(t, err)
	require.Equal(t, 1, e1.Ctx.ClientCount())

	e2, err := reg.GetOrCreate(workfile, true)
	require.NoError(t, err)
	require.Same(t, e1.Ctx, e2.Ctx)
	require.Equal(t, 2, e2.Ctx.ClientCount())
}

func TestDestroy_RemovesCacheDirAndIsIdempotent(t *testing.T) {
	cacheRoot := t.TempDir()
	dataRoot := t.TempDir()
	reg := New(cacheRoot, filepath.Join(dataRoot, "events.log"), 0, nil)

	workfile := filepath.Join(t.TempDir(), "flow.graphml")
	e, err := reg.GetOrCreate(workfile, true)
	require.NoError(t, err)

	_, err = os.Stat(e.Ctx.CacheDir)
	require.NoError(t, err)

	reg.Destroy(e.WorkspaceID)
	_, err = os.Stat(e.Ctx.CacheDir)
	require.True(t, os.IsNotExist(err))

	require.NotPanics(t, func() { reg.Destroy(e.WorkspaceID) })
}

func TestDisconnectClient_DestroysAtZero(t *testing.T) {
	cacheRoot := t.TempDir()
	dataRoot := t.TempDir()
	reg := New(cacheRoot, filepath.Join(dataRoot, "events.log"), 0, nil)

	workfile := filepath.Join(t.TempDir(), "flow.graphml")
	e, err := reg.GetOrCreate(workfile, true)
	require.NoError(t, err)

	reg.DisconnectClient(e.WorkspaceID)
	_, ok := reg.Get(e.WorkspaceID)
	require.False(t, ok)
}

func TestCycleCache_RemovesOnlyStaleNonLiveDirs(t *testing.T) {
	cacheRoot := t.TempDir()
	dataRoot := t.TempDir()
	reg := New(cacheRoot, filepath.Join(dataRoot, "events.log"), 0, nil)

	stale := filepath.Join(cacheRoot, "stale-workspace")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(cacheRoot, "fresh-workspace")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	require.NoError(t, reg.CycleCache(24*time.Hour, 1<<30))

	_, err := os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}
