// Package registry implements Component G: the process-wide map of
// workspace id to Context, lazy construction, reference-counted
// destruction, and cache-directory cycling.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/workforce-hq/workforce/internal/eventbus"
	"github.com/workforce-hq/workforce/internal/graph"
	"github.com/workforce-hq/workforce/internal/idgen"
	"github.com/workforce-hq/workforce/internal/workspace"
)

// Entry is the metadata the registry exposes for GET /workspaces, alongside
// the live Context.
type Entry struct {
	WorkspaceID  string
	WorkfilePath string
	CreatedAt    time.Time
	Ctx          *workspace.Context
}

// Registry is the single process-wide workspace table (§4.G).
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*Entry
	cache string // cache root, <cache>/<workspace_id>/...
	eventLogPath string
	eventLogCap  int64
	logger       *zap.SugaredLogger
}

// New builds an empty Registry. cacheRoot is the platform cache directory
// under which each workspace gets its own subdirectory. eventLogPath/Cap
// configure the event bus every workspace is created with.
func New(cacheRoot, eventLogPath string, eventLogCap int64, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		byID:         make(map[string]*Entry),
		cache:        cacheRoot,
		eventLogPath: eventLogPath,
		eventLogCap:  eventLogCap,
		logger:       logger,
	}
}

// GetOrCreate resolves workfilePath to a workspace id, returning its
// Context — creating one lazily on first reference if needed — and
// optionally bumping the client count (§3, "created on the first client
// connect for its workspace_id").
func (r *Registry) GetOrCreate(workfilePath string, incrementClients bool) (*Entry, error) {
	id, err := idgen.Workspace(workfilePath)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byID[id]; ok {
		if incrementClients {
			e.Ctx.IncrementClients()
		}
		return e, nil
	}

	cacheDir := filepath.Join(r.cache, id)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: mkdir cache dir: %w", err)
	}

	store := graph.NewStore(workfilePath, graph.NewGraphMLCodec())
	bus, err := eventbus.New(r.eventLogPath, r.eventLogCap, r.logger)
	if err != nil {
		return nil, fmt.Errorf("registry: event bus: %w", err)
	}

	ctx := workspace.New(id, workfilePath, cacheDir, store, bus, r.logger)
	if incrementClients {
		ctx.IncrementClients()
	}

	e := &Entry{WorkspaceID: id, WorkfilePath: workfilePath, CreatedAt: time.Now(), Ctx: ctx}
	r.byID[id] = e
	return e, nil
}

// Get looks up an already-created workspace, performing no construction.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	return e, ok
}

// List returns every live workspace entry, for GET /workspaces.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Destroy removes a workspace's context, shutting down its worker, clearing
// subscriptions and run tables, and deleting its cache directory.
// Idempotent: destroying an unknown id is a no-op (§3, "destruction is
// idempotent").
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	e, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	e.Ctx.Shutdown()
	if err := os.RemoveAll(e.Ctx.CacheDir); err != nil && r.logger != nil {
		r.logger.Warnw("failed to remove workspace cache dir", "workspace_id", id, "error", err)
	}
}

// DisconnectClient decrements id's client count and destroys the workspace
// once it returns to zero (§3, "destroyed when client_count returns to
// zero").
func (r *Registry) DisconnectClient(id string) {
	e, ok := r.Get(id)
	if !ok {
		return
	}
	if e.Ctx.DecrementClients() == 0 {
		r.Destroy(id)
	}
}

// CycleCache implements §4.G's cache sweep: remove any workspace cache
// directory older than maxAge, then — oldest first — remove caches until
// total usage is under maxBytes. Live workspaces (still in byID) are never
// removed regardless of age, since their worker may still reference the
// directory for sidecar writes.
func (r *Registry) CycleCache(maxAge time.Duration, maxBytes int64) error {
	r.mu.Lock()
	live := make(map[string]bool, len(r.byID))
	for id := range r.byID {
		live[id] = true
	}
	r.mu.Unlock()

	entries, err := os.ReadDir(r.cache)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	type dirInfo struct {
		path    string
		modTime time.Time
		size    int64
	}
	var dirs []dirInfo
	now := time.Now()

	for _, de := range entries {
		if !de.IsDir() || live[de.Name()] {
			continue
		}
		path := filepath.Join(r.cache, de.Name())
		info, err := de.Info()
		if err != nil {
			continue
		}
		size := dirSize(path)
		if now.Sub(info.ModTime()) > maxAge {
			os.RemoveAll(path)
			continue
		}
		dirs = append(dirs, dirInfo{path: path, modTime: info.ModTime(), size: size})
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].modTime.Before(dirs[j].modTime) })

	var total int64
	for _, d := range dirs {
		total += d.size
	}
	for _, d := range dirs {
		if total <= maxBytes {
			break
		}
		if err := os.RemoveAll(d.path); err == nil {
			total -= d.size
		}
	}
	return nil
}

func dirSize(path string) int64 {
	var total int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// ShutdownAll destroys every live workspace, used on process shutdown
// (§4.H, "enqueue the sentinel for every context's worker").
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Destroy(id)
	}
}
