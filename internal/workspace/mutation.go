package workspace

import (
	"github.com/workforce-hq/workforce/internal/graph"
)

// OpKind names which Graph Store operation (§4.A's table) a Mutation
// applies. Only OpEditStatus mutations feed the scheduler's reaction
// rules (§4.D step 5); every other kind only produces a GRAPH_UPDATED.
type OpKind string

const (
	OpAddNode               OpKind = "add_node"
	OpRemoveNode            OpKind = "remove_node"
	OpAddEdge               OpKind = "add_edge"
	OpRemoveEdge            OpKind = "remove_edge"
	OpEditEdgeType          OpKind = "edit_edge_type"
	OpEditStatus            OpKind = "edit_status"
	OpEditStatuses          OpKind = "edit_statuses"
	OpEditNodePosition      OpKind = "edit_node_position"
	OpEditNodePositions     OpKind = "edit_node_positions"
	OpEditWrapper           OpKind = "edit_wrapper"
	OpEditNodeLabel         OpKind = "edit_node_label"
	OpSaveNodeExecutionData OpKind = "save_node_execution_data"
	OpRemoveNodeLogs        OpKind = "remove_node_logs"
)

// Mutation is one entry of the mutation queue (§3). Only the fields
// relevant to Kind are populated; this mirrors the original's dynamically
// typed (func, args, kwargs) tuple as a single tagged struct.
type Mutation struct {
	Kind OpKind

	// add_node
	Label  string
	X, Y   float64
	Status string

	// remove_node, edit_node_position, edit_node_label,
	// save_node_execution_data
	NodeID string

	// add_edge, remove_edge, edit_edge_type
	Source, Target string
	EdgeType       graph.EdgeType

	// edit_status
	Kind2 graph.ElementKind // element kind for edit_status (node|edge)
	ID    string            // element id for edit_status
	Value string            // status value for edit_status

	// edit_status: the run this status edit belongs to, used by the
	// scheduler's reaction rules. Not a Graph Store field.
	RunID string

	// edit_statuses, edit_node_positions, remove_node_logs (batches)
	StatusEdits   []graph.StatusEdit
	PositionEdits []graph.PositionEdit
	NodeIDs       []string

	// edit_wrapper
	Wrapper string

	// save_node_execution_data
	ExecRecord graph.ExecutionRecord

	// idempotency_key this mutation was enqueued under, if any; carried
	// through only for diagnostics/logging.
	IdempotencyKey string
}

// apply executes m against store, returning an error that the worker logs
// and drops (§7, "Persistence: ... the worker logs the failure and drops
// the mutation").
func apply(store *graph.Store, m *Mutation) error {
	switch m.Kind {
	case OpAddNode:
		_, err := store.AddNode(m.Label, m.X, m.Y, graph.NodeStatus(m.Status))
		return err
	case OpRemoveNode:
		return store.RemoveNode(m.NodeID)
	case OpAddEdge:
		_, err := store.AddEdge(m.Source, m.Target, m.EdgeType)
		return err
	case OpRemoveEdge:
		return store.RemoveEdge(m.Source, m.Target)
	case OpEditEdgeType:
		return store.EditEdgeType(m.Source, m.Target, m.EdgeType)
	case OpEditStatus:
		return store.EditStatus(m.Kind2, m.ID, m.Value)
	case OpEditStatuses:
		_, err := store.EditStatuses(m.StatusEdits)
		return err
	case OpEditNodePosition:
		return store.EditNodePosition(m.NodeID, m.X, m.Y)
	case OpEditNodePositions:
		_, _, err := store.EditNodePositions(m.PositionEdits)
		return err
	case OpEditWrapper:
		return store.EditWrapper(m.Wrapper)
	case OpEditNodeLabel:
		return store.EditNodeLabel(m.NodeID, m.Label)
	case OpSaveNodeExecutionData:
		return store.SaveNodeExecutionData(m.NodeID, m.ExecRecord)
	case OpRemoveNodeLogs:
		_, err := store.RemoveNodeLogs(m.NodeIDs)
		return err
	default:
		return nil
	}
}
