package workspace

import (
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/workforce-hq/workforce/internal/eventbus"
)

// worker is the single mutation-consuming goroutine of one workspace
// (Component D, §4.D): it pops mutations off the FIFO one at a time,
// applies them to the Graph Store, emits GRAPH_UPDATED, runs the
// scheduler's reaction rules for status edits, and — once the queue
// drains — kicks off an asynchronous run-completion scan (§4.D step 6,
// §4.E.4) on its own goroutine rather than blocking the drain loop on it,
// mirroring the ground truth's threading.Thread(target=_check_complete)
// per drain. Reaction follow-ups (an edge going to_run, a downstream node
// going to "run") are themselves pushed onto this same queue before the
// drain check runs, so a scan launched here never observes a mid-cascade
// state.
type worker struct {
	ctx       *Context
	logger    *zap.SugaredLogger
	done      chan struct{}
	scanGroup errgroup.Group
}

func newWorker(ctx *Context, logger *zap.SugaredLogger) *worker {
	return &worker{ctx: ctx, logger: logger, done: make(chan struct{})}
}

// run is the worker's main loop. It returns when it pops the nil shutdown
// sentinel (§4.D step 2).
func (w *worker) run() {
	defer close(w.done)
	for {
		m := w.ctx.Queue.Pop()
		if m == nil {
			return
		}
		w.process(m)
		if w.ctx.Queue.Empty() {
			w.scanGroup.Go(func() error {
				w.ctx.ScanRunCompletion()
				return nil
			})
		}
	}
}

// process applies a single mutation and reacts to it. A persistence
// failure is logged and the mutation dropped (§7): the workspace keeps
// running on the last good on-disk state rather than crashing the worker.
func (w *worker) process(m *Mutation) {
	if err := apply(w.ctx.Store, m); err != nil {
		if w.logger != nil {
			w.logger.Errorw("mutation failed, dropping", "kind", m.Kind, "error", err)
		}
		return
	}

	g, err := w.ctx.Store.Load()
	if err != nil {
		if w.logger != nil {
			w.logger.Errorw("reload after mutation failed", "error", err)
		}
		return
	}

	w.ctx.Bus.Emit(eventbus.GraphUpdated, g.Project())

	if m.Kind == OpEditStatus {
		w.ctx.reactToStatusEdit(g, m)
	}
}

// Wait blocks until the worker has observed the shutdown sentinel and every
// background completion scan it launched has returned, so Shutdown can
// safely close the bus behind it.
func (w *worker) Wait() {
	<-w.done
	_ = w.scanGroup.Wait()
}
