package workspace

import (
	"sync"
	"time"
)

// RunState is the bookkeeping record for one logical execution attempt
// (§3, "active_runs: map run_id -> {nodes, subset_only, created_at}").
type RunState struct {
	Nodes      map[string]bool
	SubsetOnly bool
	CreatedAt  time.Time
}

// RunSummary is the read-only view returned by GET …/runs.
type RunSummary struct {
	RunID        string `json:"run_id"`
	SubsetOnly   bool   `json:"subset_only"`
	NodesTotal   int    `json:"nodes_total"`
	NodesRunning int    `json:"nodes_running"`
	NodesFailed  int    `json:"nodes_failed"`
}

// runTable holds the three maps of §3 that tie nodes and edges back to the
// run that owns them, guarded by a single mutex (§5, "Shared resources").
type runTable struct {
	mu            sync.Mutex
	activeRuns    map[string]*RunState
	activeNodeRun map[string]string // node_id -> run_id
	edgeRunMap    map[string]string // edge_id -> run_id
}

func newRunTable() *runTable {
	return &runTable{
		activeRuns:    make(map[string]*RunState),
		activeNodeRun: make(map[string]string),
		edgeRunMap:    make(map[string]string),
	}
}

// ensureLocked creates an empty run entry if absent. Caller holds mu.
func (t *runTable) ensureLocked(runID string) *RunState {
	rs, ok := t.activeRuns[runID]
	if !ok {
		rs = &RunState{Nodes: make(map[string]bool), CreatedAt: time.Now()}
		t.activeRuns[runID] = rs
	}
	return rs
}

// CreateSubsetRun registers a fresh subset run with its fixed node scope
// (§4.E.2 step 5, "subset_only = true, nodes = {selected}").
func (t *runTable) CreateSubsetRun(runID string, nodes []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs := t.ensureLocked(runID)
	rs.SubsetOnly = true
	for _, n := range nodes {
		rs.Nodes[n] = true
	}
}

// RecordNodeRun implements §4.E.1's bookkeeping for a node transitioning
// to "run": ensure the run exists, map the node to it, and add it to the
// run's node set.
func (t *runTable) RecordNodeRun(nodeID, runID string) {
	if runID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rs := t.ensureLocked(runID)
	t.activeNodeRun[nodeID] = runID
	rs.Nodes[nodeID] = true
}

// RecordNodeRunIfAbsent implements the running/ran/fail bookkeeping rule:
// establish the node->run mapping only if one is not already present.
func (t *runTable) RecordNodeRunIfAbsent(nodeID, runID string) {
	if runID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.activeNodeRun[nodeID]; ok {
		return
	}
	rs := t.ensureLocked(runID)
	t.activeNodeRun[nodeID] = runID
	rs.Nodes[nodeID] = true
}

// RecordEdgeRun implements the edge to_run bookkeeping rule.
func (t *runTable) RecordEdgeRun(edgeID, runID string) {
	if runID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edgeRunMap[edgeID] = runID
}

// RunIDForNode returns the run currently owning nodeID's execution, if any.
func (t *runTable) RunIDForNode(nodeID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeNodeRun[nodeID]
}

// RunIDForEdge returns the run recorded for edgeID, if any.
func (t *runTable) RunIDForEdge(edgeID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edgeRunMap[edgeID]
}

// Get returns a copy of the run's scope/flag, and whether it exists.
func (t *runTable) Get(runID string) (nodes map[string]bool, subsetOnly bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs, exists := t.activeRuns[runID]
	if !exists {
		return nil, false, false
	}
	out := make(map[string]bool, len(rs.Nodes))
	for k, v := range rs.Nodes {
		out[k] = v
	}
	return out, rs.SubsetOnly, true
}

// Remove deletes a run and every node mapping pointing to it (§4.E.4
// steps 2-3). Idempotent: removing an absent run is a no-op.
func (t *runTable) Remove(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.activeRuns, runID)
	for n, r := range t.activeNodeRun {
		if r == runID {
			delete(t.activeNodeRun, n)
		}
	}
	for e, r := range t.edgeRunMap {
		if r == runID {
			delete(t.edgeRunMap, e)
		}
	}
}

// Reset clears every run mapping, used when a workspace is destroyed.
func (t *runTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeRuns = make(map[string]*RunState)
	t.activeNodeRun = make(map[string]string)
	t.edgeRunMap = make(map[string]string)
}

// ActiveRunIDs returns a snapshot of every run id currently tracked.
func (t *runTable) ActiveRunIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.activeRuns))
	for id := range t.activeRuns {
		ids = append(ids, id)
	}
	return ids
}

// NodesMappedToRun returns every node id currently mapped to runID via
// active_node_run, used by §4.E.4 when the run's own node set is empty
// ("full pipeline" runs).
func (t *runTable) NodesMappedToRun(runID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for n, r := range t.activeNodeRun {
		if r == runID {
			out = append(out, n)
		}
	}
	return out
}
