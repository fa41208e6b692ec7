package workspace

import (
	"fmt"

	"github.com/workforce-hq/workforce/internal/apperr"
	"github.com/workforce-hq/workforce/internal/eventbus"
	"github.com/workforce-hq/workforce/internal/graph"
	"github.com/workforce-hq/workforce/internal/idgen"
)

// reactToStatusEdit implements §4.E.3's reaction rules for a single
// edit_status mutation that already landed on disk. g is the just-loaded
// post-mutation graph, reused here so the caller does not pay for a second
// load. Called from the worker, never concurrently with another mutation
// for the same workspace (single-writer invariant).
func (c *Context) reactToStatusEdit(g *graph.Graph, m *Mutation) {
	switch m.Kind2 {
	case graph.KindNode:
		c.reactToNodeStatus(g, m.ID, graph.NodeStatus(m.Value), m.RunID)
	case graph.KindEdge:
		c.reactToEdgeStatus(g, m.ID, m.RunID)
	}
}

func (c *Context) reactToNodeStatus(g *graph.Graph, nodeID string, status graph.NodeStatus, runID string) {
	n := g.Nodes[nodeID]
	switch status {
	case graph.NodeStatusRun:
		c.Runs.RecordNodeRun(nodeID, runID)
		label := ""
		if n != nil {
			label = n.Label
		}
		c.Bus.Emit(eventbus.NodeReady, map[string]string{"node_id": nodeID, "label": label, "run_id": runID})
	case graph.NodeStatusRunning:
		c.Runs.RecordNodeRunIfAbsent(nodeID, runID)
		c.Bus.Emit(eventbus.NodeStarted, map[string]string{"node_id": nodeID, "run_id": runID})
	case graph.NodeStatusRan:
		c.Runs.RecordNodeRunIfAbsent(nodeID, runID)
		c.Bus.Emit(eventbus.NodeFinished, map[string]string{"node_id": nodeID, "status": string(status), "run_id": runID})
		c.handleNodeRan(g, nodeID)
	case graph.NodeStatusFail:
		c.Runs.RecordNodeRunIfAbsent(nodeID, runID)
		c.Bus.Emit(eventbus.NodeFailed, map[string]string{"node_id": nodeID, "status": string(status), "run_id": runID})
	}
}

// handleNodeRan arms every out-edge of a finished node for the edge-level
// reaction (§4.E.3, "a finished node marks each of its out-edges to_run,
// honoring the run's subset scope"). Out-edges loaded from a hand-authored
// or legacy workfile may lack an id (the GraphML codec leaves it empty when
// the XML attribute is absent); those are backfilled and the graph saved
// once before any edge is marked to_run, mirroring the original's
// "ensure all edges have IDs" pass, since edges are keyed by id and two
// empty ids would otherwise collide in the graph's edge map.
func (c *Context) handleNodeRan(g *graph.Graph, nodeID string) {
	runID := c.Runs.RunIDForNode(nodeID)
	nodes, subsetOnly, hasRun := c.Runs.Get(runID)

	outEdges := g.OutEdges(nodeID)
	needsSave := false
	for _, e := range outEdges {
		if e.ID == "" {
			g.AssignEdgeID(e, idgen.New())
			needsSave = true
		}
	}
	if needsSave {
		if err := c.Store.Save(g); err != nil {
			if c.logger != nil {
				c.logger.Warnw("failed to save graph after backfilling edge ids", "node_id", nodeID, "error", err)
			}
			return
		}
	}

	for _, e := range outEdges {
		if subsetOnly && hasRun && !nodes[e.Target] {
			continue
		}
		c.Runs.RecordEdgeRun(e.ID, runID)
		c.EnqueueStatus(graph.KindEdge, e.ID, string(graph.EdgeStatusToRun), runID)
	}
}

// reactToEdgeStatus implements the blocking-AND / non-blocking-OR trigger
// rule of §4.E.3's normative scenarios S3/S4: a target node becomes
// runnable once every blocking in-edge (if any) is to_run, OR any
// non-blocking in-edge (if any) is to_run. A target with zero in-edges of a
// given type never vacuously satisfies that type's clause.
func (c *Context) reactToEdgeStatus(g *graph.Graph, edgeID string, runID string) {
	e, ok := g.Edges[edgeID]
	if !ok {
		return
	}
	if runID == "" {
		runID = c.Runs.RunIDForEdge(edgeID)
	}
	if runID == "" {
		runID = c.Runs.RunIDForNode(e.Source)
	}

	nodes, subsetOnly, hasRun := c.Runs.Get(runID)
	if subsetOnly && hasRun && !nodes[e.Target] {
		return
	}

	target, ok := g.Nodes[e.Target]
	if !ok {
		return
	}
	// Only a node genuinely in flight is excluded. A "ran" node is eligible
	// for a fresh trigger (S4, P7: completing one dependency again after a
	// downstream node has already finished re-arms it to "run").
	switch target.Status {
	case graph.NodeStatusRun, graph.NodeStatusRunning:
		return
	}

	var blocking, nonBlocking []*graph.Edge
	for _, in := range g.InEdges(e.Target) {
		switch in.EdgeType {
		case graph.EdgeTypeBlocking:
			blocking = append(blocking, in)
		case graph.EdgeTypeNonBlocking:
			nonBlocking = append(nonBlocking, in)
		}
	}

	blockingSatisfied := len(blocking) > 0 && allToRun(blocking)
	nonBlockingTriggered := len(nonBlocking) > 0 && anyToRun(nonBlocking)
	if !blockingSatisfied && !nonBlockingTriggered {
		return
	}

	c.EnqueueStatus(graph.KindNode, e.Target, "", "")
	c.EnqueueStatus(graph.KindNode, e.Target, string(graph.NodeStatusRun), runID)

	// Re-arm the participating in-edges so the next cycle of this node can
	// be triggered again (P7: a node may run more than once across a run).
	var rearm []*graph.Edge
	if blockingSatisfied {
		rearm = append(rearm, blocking...)
	}
	if nonBlockingTriggered {
		rearm = append(rearm, nonBlocking...)
	}
	for _, in := range rearm {
		if in.Status == graph.EdgeStatusToRun {
			c.EnqueueStatus(graph.KindEdge, in.ID, "", "")
		}
	}
}

func allToRun(edges []*graph.Edge) bool {
	for _, e := range edges {
		if e.Status != graph.EdgeStatusToRun {
			return false
		}
	}
	return true
}

func anyToRun(edges []*graph.Edge) bool {
	for _, e := range edges {
		if e.Status == graph.EdgeStatusToRun {
			return true
		}
	}
	return false
}

// StartRun implements §4.E.2: mints a run id, selects the initial node set
// for one of the three start shapes (subset, resume-failed, full pipeline),
// rejects a blocking cycle within scope without mutating anything, and
// enqueues the clear+run status edits that kick the run off.
func (c *Context) StartRun(nodeIDs []string) (runID string, selected []string, err error) {
	g, err := c.Store.Load()
	if err != nil {
		return "", nil, err
	}

	runID = idgen.New()

	switch {
	case len(nodeIDs) > 0:
		scope := make(map[string]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			if _, ok := g.Nodes[id]; !ok {
				return "", nil, fmt.Errorf("%w: node %q", apperr.ErrNodeNotFound, id)
			}
			scope[id] = true
		}
		if g.HasBlockingCycleAmong(scope) {
			return "", nil, apperr.ErrRunBlockedCycle
		}
		selected = g.Roots(scope)
		if len(selected) == 0 {
			selected = nodeIDs
		}
		c.Runs.CreateSubsetRun(runID, nodeIDs)

	default:
		if g.HasBlockingCycle() {
			return "", nil, apperr.ErrRunBlockedCycle
		}
		selected = failedNodes(g)
		if len(selected) == 0 {
			roots := g.Roots(nil)
			if empty := nodesWithEmptyStatus(g, roots); len(empty) > 0 {
				selected = empty
			} else {
				// Every root already has a status: clear and restart them all.
				selected = roots
			}
		}
		c.Runs.mu.Lock()
		c.Runs.ensureLocked(runID)
		c.Runs.mu.Unlock()
	}

	for _, n := range selected {
		c.EnqueueStatus(graph.KindNode, n, "", "")
		c.EnqueueStatus(graph.KindNode, n, string(graph.NodeStatusRun), runID)
	}
	return runID, selected, nil
}

func failedNodes(g *graph.Graph) []string {
	var out []string
	for _, n := range g.NodeList() {
		if n.Status == graph.NodeStatusFail {
			out = append(out, n.ID)
		}
	}
	return out
}

func nodesWithEmptyStatus(g *graph.Graph, ids []string) []string {
	var out []string
	for _, id := range ids {
		if n, ok := g.Nodes[id]; ok && n.Status == graph.NodeStatusNone {
			out = append(out, id)
		}
	}
	return out
}

// ScanRunCompletion implements §4.E.4: a run with no node still run/running
// within its scope is finished; emit RUN_COMPLETE and forget it. Called by
// the worker whenever the mutation queue drains.
func (c *Context) ScanRunCompletion() {
	g, err := c.Store.Load()
	if err != nil {
		return
	}
	for _, runID := range c.Runs.ActiveRunIDs() {
		scope, _, ok := c.Runs.Get(runID)
		if !ok {
			continue
		}
		if len(scope) == 0 {
			for _, n := range c.Runs.NodesMappedToRun(runID) {
				scope[n] = true
			}
		}
		if anyNodeRunning(g, scope) {
			continue
		}
		c.Bus.Emit(eventbus.RunComplete, map[string]string{"run_id": runID})
		c.Runs.Remove(runID)
	}
}

func anyNodeRunning(g *graph.Graph, scope map[string]bool) bool {
	for id := range scope {
		n, ok := g.Nodes[id]
		if !ok {
			continue
		}
		if n.Status == graph.NodeStatusRun || n.Status == graph.NodeStatusRunning {
			return true
		}
	}
	return false
}
