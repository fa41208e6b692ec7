package workspace

import (
	"sync"
	"time"
)

// ClientType distinguishes the drawing/editing UI from a headless runner.
type ClientType string

const (
	ClientGUI    ClientType = "gui"
	ClientRunner ClientType = "runner"
)

// ClientInfo is what the transport adapter needs to know about one
// attached client: its kind, and — for runners that started a run — the
// run id so a RUN_COMPLETE event can be routed back to disconnect it.
type ClientInfo struct {
	ClientID    string     `json:"client_id"`
	Type        ClientType `json:"type"`
	RunID       string     `json:"run_id,omitempty"`
	ConnectedAt time.Time  `json:"connected_at"`
}

// clientRegistry tracks attached clients for one workspace.
type clientRegistry struct {
	mu      sync.Mutex
	clients map[string]*ClientInfo
}

func newClientRegistry() *clientRegistry {
	return &clientRegistry{clients: make(map[string]*ClientInfo)}
}

func (r *clientRegistry) Register(clientID string, typ ClientType) *ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := &ClientInfo{ClientID: clientID, Type: typ, ConnectedAt: time.Now()}
	r.clients[clientID] = info
	return info
}

// BindRun associates a runner client with the run it started (§4.E.2
// step 2, "Register a runner client under run_id").
func (r *clientRegistry) BindRun(clientID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		c.RunID = runID
	}
}

func (r *clientRegistry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
}

// ClientForRun returns the client id that started runID, if still attached
// (§4.F, RUN_COMPLETE is delivered to "the runner that started the run").
func (r *clientRegistry) ClientForRun(runID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		if c.RunID == runID {
			return id, true
		}
	}
	return "", false
}

// Snapshot returns the gui and runner client lists for GET …/clients.
func (r *clientRegistry) Snapshot() (gui []ClientInfo, runner []ClientInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		switch c.Type {
		case ClientGUI:
			gui = append(gui, *c)
		case ClientRunner:
			runner = append(runner, *c)
		}
	}
	return gui, runner
}

// processedRequests is the bounded FIFO + membership set of §3
// ("at most 1000 idempotency keys for dedup").
type processedRequests struct {
	mu       sync.Mutex
	order    []string
	seen     map[string]bool
	capacity int
}

func newProcessedRequests(capacity int) *processedRequests {
	if capacity <= 0 {
		capacity = 1000
	}
	return &processedRequests{seen: make(map[string]bool), capacity: capacity}
}

// CheckAndAdd returns true if key was already processed (a duplicate).
// Otherwise it records key, evicting the oldest entry if at capacity, and
// returns false.
func (p *processedRequests) CheckAndAdd(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.seen[key] {
		return true
	}
	if len(p.order) >= p.capacity {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.seen, oldest)
	}
	p.order = append(p.order, key)
	p.seen[key] = true
	return false
}
