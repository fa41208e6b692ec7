package graph

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/workforce-hq/workforce/internal/apperr"
	"github.com/workforce-hq/workforce/internal/idgen"
)

// Store loads and saves a Graph to a workfile path through an injected
// Codec (§4.A). It performs atomic writes (serialize to a sibling temp
// file, then rename) and exposes the mutation operations table of §4.A as
// methods. Every method is "load, mutate, save": the Mutation Worker is
// the only caller, so no additional locking is needed for read-modify-
// write atomicity.
type Store struct {
	path  string
	codec Codec
}

// NewStore binds a Codec to a workfile path.
func NewStore(path string, codec Codec) *Store {
	return &Store{path: path, codec: codec}
}

// Load reads the graph from disk, creating (and persisting) an empty graph
// if the file does not exist yet.
func (s *Store) Load() (*Graph, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		g := New()
		if saveErr := s.Save(g); saveErr != nil {
			return nil, saveErr
		}
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graph store: open %s: %w", s.path, err)
	}
	defer f.Close()

	g, err := s.codec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("graph store: decode %s: %w", s.path, err)
	}
	return g, nil
}

// Save serializes g to a sibling temp file and renames it over the target
// path, so readers never observe a partially-written workfile.
func (s *Store) Save(g *Graph) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("graph store: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".workfile-*.tmp")
	if err != nil {
		return fmt.Errorf("graph store: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := s.codec.Encode(tmp, g); err != nil {
		tmp.Close()
		return fmt.Errorf("graph store: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("graph store: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("graph store: rename: %w", err)
	}
	return nil
}

// AddNode inserts a fresh node and saves. Returns the new node id.
func (s *Store) AddNode(label string, x, y float64, status NodeStatus) (string, error) {
	g, err := s.Load()
	if err != nil {
		return "", err
	}
	id := idgen.New()
	g.addNodeOrdered(&Node{ID: id, Label: label, X: x, Y: y, Status: status})
	return id, s.Save(g)
}

// RemoveNode deletes a node and every edge touching it.
func (s *Store) RemoveNode(nodeID string) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := g.Nodes[nodeID]; !ok {
		return fmt.Errorf("%w: node %q", apperr.ErrNodeNotFound, nodeID)
	}
	g.removeNodeCascade(nodeID)
	return s.Save(g)
}

// AddEdge inserts a fresh edge and saves. Returns the new edge id.
func (s *Store) AddEdge(source, target string, edgeType EdgeType) (string, error) {
	g, err := s.Load()
	if err != nil {
		return "", err
	}
	if _, ok := g.Nodes[source]; !ok {
		return "", fmt.Errorf("%w: source %q", apperr.ErrEndpointMissing, source)
	}
	if _, ok := g.Nodes[target]; !ok {
		return "", fmt.Errorf("%w: target %q", apperr.ErrEndpointMissing, target)
	}
	if edgeType == "" {
		edgeType = EdgeTypeBlocking
	}
	id := idgen.New()
	g.addEdgeOrdered(&Edge{ID: id, Source: source, Target: target, EdgeType: edgeType})
	return id, s.Save(g)
}

// RemoveEdge deletes the edge between source and target, if one exists.
func (s *Store) RemoveEdge(source, target string) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	var found string
	for _, e := range g.EdgeList() {
		if e.Source == source && e.Target == target {
			found = e.ID
			break
		}
	}
	if found == "" {
		return fmt.Errorf("%w: %s->%s", apperr.ErrEdgeNotFound, source, target)
	}
	delete(g.Edges, found)
	g.edgeOrder = removeString(g.edgeOrder, found)
	return s.Save(g)
}

// EditEdgeType changes the edge_type of the edge between source and target.
func (s *Store) EditEdgeType(source, target string, edgeType EdgeType) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	for _, e := range g.EdgeList() {
		if e.Source == source && e.Target == target {
			e.EdgeType = edgeType
			return s.Save(g)
		}
	}
	return fmt.Errorf("%w: %s->%s", apperr.ErrEdgeNotFound, source, target)
}

// EditStatus sets the status of a single node or edge.
func (s *Store) EditStatus(kind ElementKind, id string, value string) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	if err := applyStatus(g, kind, id, value); err != nil {
		return err
	}
	return s.Save(g)
}

// StatusEdit is one entry of an edit_statuses batch.
type StatusEdit struct {
	Kind  ElementKind
	ID    string
	Value string
}

// EditStatuses applies a batch of status edits atomically: either all
// apply (one save) or, on the first unresolvable id, none do.
func (s *Store) EditStatuses(edits []StatusEdit) (int, error) {
	g, err := s.Load()
	if err != nil {
		return 0, err
	}
	for _, e := range edits {
		if err := applyStatus(g, e.Kind, e.ID, e.Value); err != nil {
			return 0, err
		}
	}
	if err := s.Save(g); err != nil {
		return 0, err
	}
	return len(edits), nil
}

func applyStatus(g *Graph, kind ElementKind, id string, value string) error {
	switch kind {
	case KindNode:
		n, ok := g.Nodes[id]
		if !ok {
			return fmt.Errorf("%w: node %q", apperr.ErrNodeNotFound, id)
		}
		n.Status = NodeStatus(value)
		return nil
	case KindEdge:
		e, ok := g.Edges[id]
		if !ok {
			return fmt.Errorf("%w: edge %q", apperr.ErrEdgeNotFound, id)
		}
		e.Status = EdgeStatus(value)
		return nil
	default:
		return fmt.Errorf("%w: %q", apperr.ErrBadKind, kind)
	}
}

// EditNodePosition updates a single node's layout coordinates.
func (s *Store) EditNodePosition(nodeID string, x, y float64) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	n, ok := g.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: node %q", apperr.ErrNodeNotFound, nodeID)
	}
	n.X, n.Y = x, y
	return s.Save(g)
}

// PositionEdit is one entry of an edit_node_positions batch.
type PositionEdit struct {
	NodeID string
	X, Y   float64
}

// EditNodePositions applies every resolvable position edit and reports ids
// that did not match a node, per §4.A ("applies valid, reports missing").
func (s *Store) EditNodePositions(edits []PositionEdit) (applied int, missing []string, err error) {
	g, err := s.Load()
	if err != nil {
		return 0, nil, err
	}
	for _, e := range edits {
		n, ok := g.Nodes[e.NodeID]
		if !ok {
			missing = append(missing, e.NodeID)
			continue
		}
		n.X, n.Y = e.X, e.Y
		applied++
	}
	if applied > 0 {
		if err := s.Save(g); err != nil {
			return 0, nil, err
		}
	}
	return applied, missing, nil
}

// EditWrapper sets the graph-level wrapper template.
func (s *Store) EditWrapper(wrapper string) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	g.Wrapper = wrapper
	return s.Save(g)
}

// EditNodeLabel updates a node's command text.
func (s *Store) EditNodeLabel(nodeID, label string) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	n, ok := g.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: node %q", apperr.ErrNodeNotFound, nodeID)
	}
	n.Label = label
	return s.Save(g)
}

// ExecutionRecord is the payload of save_node_execution_data.
type ExecutionRecord struct {
	Command   string
	Stdout    string
	Stderr    string
	PID       int
	ErrorCode string
}

// SaveNodeExecutionData overwrites a node's execution record atomically
// (invariant 5: all five fields are replaced together).
func (s *Store) SaveNodeExecutionData(nodeID string, rec ExecutionRecord) error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	n, ok := g.Nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: node %q", apperr.ErrNodeNotFound, nodeID)
	}
	n.Command, n.Stdout, n.Stderr, n.PID, n.ErrorCode = rec.Command, rec.Stdout, rec.Stderr, rec.PID, rec.ErrorCode
	return s.Save(g)
}

// RemoveNodeLogs clears the execution record of every listed node,
// fail-fast on the first unknown id with zero side effects.
func (s *Store) RemoveNodeLogs(nodeIDs []string) (int, error) {
	g, err := s.Load()
	if err != nil {
		return 0, err
	}
	for _, id := range nodeIDs {
		if _, ok := g.Nodes[id]; !ok {
			return 0, fmt.Errorf("%w: node %q", apperr.ErrNodeNotFound, id)
		}
	}
	for _, id := range nodeIDs {
		n := g.Nodes[id]
		n.Command, n.Stdout, n.Stderr, n.PID, n.ErrorCode = "", "", "", 0, ""
	}
	if err := s.Save(g); err != nil {
		return 0, err
	}
	return len(nodeIDs), nil
}

// HasBlockingCycle reports whether the current on-disk graph's blocking
// edges contain a cycle (P6).
func (s *Store) HasBlockingCycle() (bool, error) {
	g, err := s.Load()
	if err != nil {
		return false, err
	}
	return g.HasBlockingCycle(), nil
}
