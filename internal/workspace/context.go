// Package workspace implements Components C, D and E: the per-workspace
// state (§4.C), its single mutation-serializing worker (§4.D), and the
// scheduler reaction rules that drive execution forward (§4.E).
package workspace

import (
	"sync"

	"go.uber.org/zap"

	"github.com/workforce-hq/workforce/internal/eventbus"
	"github.com/workforce-hq/workforce/internal/graph"
)

// Context is the full in-memory state of one open workspace: the path it
// is bound to, its mutation queue and worker, its run/client bookkeeping,
// and the event bus clients subscribe to (§3, "workspace context").
type Context struct {
	WorkspaceID string
	WorkfilePath string
	CacheDir    string

	Store *graph.Store
	Bus   *eventbus.Bus
	Queue *mutationQueue
	Runs  *runTable

	Clients     *clientRegistry
	Idempotency *processedRequests

	logger *zap.SugaredLogger
	worker *worker

	mu          sync.Mutex
	clientCount int
}

// New builds a workspace Context bound to an already-constructed Store and
// Bus, and starts its mutation worker goroutine.
func New(workspaceID, workfilePath, cacheDir string, store *graph.Store, bus *eventbus.Bus, logger *zap.SugaredLogger) *Context {
	c := &Context{
		WorkspaceID:  workspaceID,
		WorkfilePath: workfilePath,
		CacheDir:     cacheDir,
		Store:        store,
		Bus:          bus,
		Queue:        newMutationQueue(),
		Runs:         newRunTable(),
		Clients:      newClientRegistry(),
		Idempotency:  newProcessedRequests(1000),
		logger:       logger,
	}
	c.worker = newWorker(c, logger)
	go c.worker.run()
	return c
}

// Enqueue pushes a mutation onto the workspace's queue. Never blocks.
func (c *Context) Enqueue(m *Mutation) {
	c.Queue.Push(m)
}

// EnqueueStatus is the common-case helper for pushing a single edit_status
// mutation, used both by transport handlers and by the scheduler's own
// reaction rules (which enqueue follow-up status edits from within the
// worker goroutine itself).
func (c *Context) EnqueueStatus(kind graph.ElementKind, id, value, runID string) {
	c.Queue.Push(&Mutation{Kind: OpEditStatus, Kind2: kind, ID: id, Value: value, RunID: runID})
}

// IncrementClients records a newly attached client connection.
func (c *Context) IncrementClients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientCount++
	return c.clientCount
}

// DecrementClients records a client disconnect. Clamped at zero: a
// duplicate disconnect notification is logged as an anomaly rather than
// driving the count negative (§4.C, "client_count must never go negative").
func (c *Context) DecrementClients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientCount == 0 {
		if c.logger != nil {
			c.logger.Warnw("double client disconnect", "workspace_id", c.WorkspaceID)
		}
		return 0
	}
	c.clientCount--
	return c.clientCount
}

// ClientCount returns the current attached-client count.
func (c *Context) ClientCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientCount
}

// Shutdown pushes the nil sentinel and waits for the worker to drain and
// exit (§4.D step 2, used on workspace destruction and process shutdown).
func (c *Context) Shutdown() {
	c.Queue.Push(nil)
	c.worker.Wait()
	c.Bus.UnsubscribeAll()
	c.Runs.Reset()
	_ = c.Bus.Close()
}
