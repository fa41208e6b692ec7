package workspace

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/workforce-hq/workforce/internal/eventbus"
	"github.com/workforce-hq/workforce/internal/graph"
)

// newTestContext builds a Context over a fresh temp-dir workfile with no
// event log and no logger, suitable for exercising the worker/scheduler
// without touching the filesystem's log rotation path.
func newTestContext(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()
	store := graph.NewStore(filepath.Join(dir, "workflow.graphml"), graph.NewGraphMLCodec())
	bus, err := eventbus.New("", 0, nil)
	if err != nil {
		t.Fatalf("eventbus.New: %v", err)
	}
	ctx := New("ws-test", filepath.Join(dir, "workflow.graphml"), dir, store, bus, nil)
	t.Cleanup(ctx.Shutdown)
	return ctx
}

// waitDrain blocks until the workspace's mutation queue has fully drained,
// including every reaction follow-up a mutation enqueued while processing.
// Cascades can re-populate the queue after it has momentarily emptied (a
// node's "ran" transition enqueues an edge edit, which in turn enqueues a
// node edit), so this polls for a run of consecutive empty observations
// rather than trusting a single snapshot.
func waitDrain(t *testing.T, ctx *Context) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	quiet := 0
	for time.Now().Before(deadline) {
		if ctx.Queue.Empty() {
			quiet++
			if quiet >= 3 {
				return
			}
		} else {
			quiet = 0
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for mutation queue to drain")
}
