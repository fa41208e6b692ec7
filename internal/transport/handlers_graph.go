package transport

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/workforce-hq/workforce/internal/apperr"
	"github.com/workforce-hq/workforce/internal/graph"
	"github.com/workforce-hq/workforce/internal/workspace"
)

// resolveWorkspace looks up an already-open workspace by its path segment,
// writing a 404 and returning false if it is not open.
func (s *Service) resolveWorkspace(w http.ResponseWriter, r *http.Request) (*workspace.Context, bool) {
	id := mux.Vars(r)["workspace_id"]
	e, ok := s.registry.Get(id)
	if !ok {
		apperr.WriteJSON(w, apperr.ErrWorkspaceGone)
		return nil, false
	}
	return e.Ctx, true
}

// idempotencyKey extracts the key from the body field or the
// X-Idempotency-Key header, body field taking precedence.
func idempotencyKey(r *http.Request, bodyKey string) string {
	if bodyKey != "" {
		return bodyKey
	}
	return r.Header.Get("X-Idempotency-Key")
}

// acceptMutation is the common enqueue-and-acknowledge path shared by the
// graph-editing POST endpoints other than edit-status (which enqueues
// through EnqueueStatus): dedup by idempotency key, best-effort sidecar cache the
// raw request for crash diagnostics, enqueue, and answer 202.
func (s *Service) acceptMutation(w http.ResponseWriter, r *http.Request, ctx *workspace.Context, key string, raw any, m *workspace.Mutation) {
	if key != "" {
		if ctx.Idempotency.CheckAndAdd(key) {
			writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "idempotency_key": key, "duplicate": true})
			return
		}
	}
	s.cacheSidecar(ctx, r, raw)
	ctx.Enqueue(m)

	body := map[string]any{"status": "queued"}
	if key != "" {
		body["idempotency_key"] = key
	}
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Service) cacheSidecar(ctx *workspace.Context, r *http.Request, raw any) {
	if ctx.CacheDir == "" {
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	path := filepath.Join(ctx.CacheDir, reqID(r)+".json")
	_ = os.WriteFile(path, data, 0o644)
}

func (s *Service) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	g, err := ctx.Store.Load()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Project())
}

func (s *Service) handleGetNodeLog(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	nodeID := mux.Vars(r)["node_id"]
	g, err := ctx.Store.Load()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	n, ok := g.Nodes[nodeID]
	if !ok {
		apperr.WriteJSON(w, apperr.ErrNodeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"log": n.FormatLog()})
}

func (s *Service) handleAddNode(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Label          string  `json:"label"`
		X              float64 `json:"x"`
		Y              float64 `json:"y"`
		Status         string  `json:"status"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := decodeJSON(r, &body); err != nil {
		apperr.Write(w, apperr.CodeBadRequest, "invalid request body", http.StatusBadRequest)
		return
	}
	key := idempotencyKey(r, body.IdempotencyKey)
	m := &workspace.Mutation{Kind: workspace.OpAddNode, Label: body.Label, X: body.X, Y: body.Y, Status: body.Status, IdempotencyKey: key}
	s.acceptMutation(w, r, ctx, key, body, m)
}

func (s *Service) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		NodeID         string `json:"node_id"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := decodeJSON(r, &body); err != nil || body.NodeID == "" {
		apperr.Write(w, apperr.CodeBadRequest, "node_id required", http.StatusBadRequest)
		return
	}
	key := idempotencyKey(r, body.IdempotencyKey)
	m := &workspace.Mutation{Kind: workspace.OpRemoveNode, NodeID: body.NodeID}
	s.acceptMutation(w, r, ctx, key, body, m)
}

func (s *Service) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Source         string `json:"source"`
		Target         string `json:"target"`
		EdgeType       string `json:"edge_type"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Source == "" || body.Target == "" {
		apperr.Write(w, apperr.CodeBadRequest, "source and target required", http.StatusBadRequest)
		return
	}
	edgeType := graph.EdgeType(body.EdgeType)
	if edgeType == "" {
		edgeType = graph.EdgeTypeBlocking
	}
	key := idempotencyKey(r, body.IdempotencyKey)
	m := &workspace.Mutation{Kind: workspace.OpAddEdge, Source: body.Source, Target: body.Target, EdgeType: edgeType}
	s.acceptMutation(w, r, ctx, key, body, m)
}

func (s *Service) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Source == "" || body.Target == "" {
		apperr.Write(w, apperr.CodeBadRequest, "source and target required", http.StatusBadRequest)
		return
	}
	m := &workspace.Mutation{Kind: workspace.OpRemoveEdge, Source: body.Source, Target: body.Target}
	s.acceptMutation(w, r, ctx, "", body, m)
}

func (s *Service) handleEditEdgeType(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Source   string `json:"source"`
		Target   string `json:"target"`
		EdgeType string `json:"edge_type"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Source == "" || body.Target == "" || body.EdgeType == "" {
		apperr.Write(w, apperr.CodeBadRequest, "source, target and edge_type required", http.StatusBadRequest)
		return
	}
	m := &workspace.Mutation{Kind: workspace.OpEditEdgeType, Source: body.Source, Target: body.Target, EdgeType: graph.EdgeType(body.EdgeType)}
	s.acceptMutation(w, r, ctx, "", body, m)
}

func (s *Service) handleEditStatus(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		ElementType string `json:"element_type"`
		ElementID   string `json:"element_id"`
		Value       string `json:"value"`
		RunID       string `json:"run_id"`
	}
	if err := decodeJSON(r, &body); err != nil || body.ElementType == "" || body.ElementID == "" {
		apperr.Write(w, apperr.CodeBadRequest, "element_type and element_id required", http.StatusBadRequest)
		return
	}
	kind := graph.ElementKind(body.ElementType)
	if kind != graph.KindNode && kind != graph.KindEdge {
		apperr.WriteJSON(w, apperr.ErrBadKind)
		return
	}
	ctx.EnqueueStatus(kind, body.ElementID, body.Value, body.RunID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Service) handleEditStatuses(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Updates []struct {
			ElementType string `json:"element_type"`
			ElementID   string `json:"element_id"`
			Value       string `json:"value"`
		} `json:"updates"`
	}
	if err := decodeJSON(r, &body); err != nil || len(body.Updates) == 0 {
		apperr.Write(w, apperr.CodeBadRequest, "updates must be non-empty", http.StatusBadRequest)
		return
	}
	edits := make([]graph.StatusEdit, 0, len(body.Updates))
	for _, u := range body.Updates {
		kind := graph.ElementKind(u.ElementType)
		if kind != graph.KindNode && kind != graph.KindEdge {
			apperr.WriteJSON(w, apperr.ErrBadKind)
			return
		}
		edits = append(edits, graph.StatusEdit{Kind: kind, ID: u.ElementID, Value: u.Value})
	}
	m := &workspace.Mutation{Kind: workspace.OpEditStatuses, StatusEdits: edits}
	s.acceptMutation(w, r, ctx, "", body, m)
}

func (s *Service) handleEditNodePosition(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		NodeID string  `json:"node_id"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}
	if err := decodeJSON(r, &body); err != nil || body.NodeID == "" {
		apperr.Write(w, apperr.CodeBadRequest, "node_id required", http.StatusBadRequest)
		return
	}
	m := &workspace.Mutation{Kind: workspace.OpEditNodePosition, NodeID: body.NodeID, X: body.X, Y: body.Y}
	s.acceptMutation(w, r, ctx, "", body, m)
}

func (s *Service) handleEditNodePositions(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Positions []struct {
			NodeID string  `json:"node_id"`
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
		} `json:"positions"`
	}
	if err := decodeJSON(r, &body); err != nil || len(body.Positions) == 0 {
		apperr.Write(w, apperr.CodeBadRequest, "positions must be non-empty", http.StatusBadRequest)
		return
	}
	edits := make([]graph.PositionEdit, 0, len(body.Positions))
	for _, p := range body.Positions {
		edits = append(edits, graph.PositionEdit{NodeID: p.NodeID, X: p.X, Y: p.Y})
	}
	m := &workspace.Mutation{Kind: workspace.OpEditNodePositions, PositionEdits: edits}
	s.acceptMutation(w, r, ctx, "", body, m)
}

func (s *Service) handleEditWrapper(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Wrapper string `json:"wrapper"`
	}
	if err := decodeJSON(r, &body); err != nil {
		apperr.Write(w, apperr.CodeBadRequest, "invalid request body", http.StatusBadRequest)
		return
	}
	m := &workspace.Mutation{Kind: workspace.OpEditWrapper, Wrapper: body.Wrapper}
	s.acceptMutation(w, r, ctx, "", body, m)
}

func (s *Service) handleEditNodeLabel(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		NodeID string `json:"node_id"`
		Label  string `json:"label"`
	}
	if err := decodeJSON(r, &body); err != nil || body.NodeID == "" {
		apperr.Write(w, apperr.CodeBadRequest, "node_id required", http.StatusBadRequest)
		return
	}
	m := &workspace.Mutation{Kind: workspace.OpEditNodeLabel, NodeID: body.NodeID, Label: body.Label}
	s.acceptMutation(w, r, ctx, "", body, m)
}

// handleSaveNodeLog accepts both the legacy {node_id,log} shape (§9
// supplemented feature: the pre-distillation original stored the whole log
// as an opaque blob under "log") and the structured execution-record
// shape; the legacy form is folded entirely into Stdout.
func (s *Service) handleSaveNodeLog(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		NodeID    string `json:"node_id"`
		Log       string `json:"log"`
		Command   string `json:"command"`
		Stdout    string `json:"stdout"`
		Stderr    string `json:"stderr"`
		PID       int    `json:"pid"`
		ErrorCode string `json:"error_code"`
	}
	if err := decodeJSON(r, &body); err != nil || body.NodeID == "" {
		apperr.Write(w, apperr.CodeBadRequest, "node_id required", http.StatusBadRequest)
		return
	}
	rec := graph.ExecutionRecord{Command: body.Command, Stdout: body.Stdout, Stderr: body.Stderr, PID: body.PID, ErrorCode: body.ErrorCode}
	if body.Log != "" {
		rec.Stdout = body.Log
	}
	m := &workspace.Mutation{Kind: workspace.OpSaveNodeExecutionData, NodeID: body.NodeID, ExecRecord: rec}
	s.acceptMutation(w, r, ctx, "", body, m)
}

func (s *Service) handleRemoveNodeLogs(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		NodeIDs []string `json:"node_ids"`
	}
	if err := decodeJSON(r, &body); err != nil || len(body.NodeIDs) == 0 {
		apperr.Write(w, apperr.CodeBadRequest, "node_ids must be non-empty", http.StatusBadRequest)
		return
	}
	m := &workspace.Mutation{Kind: workspace.OpRemoveNodeLogs, NodeIDs: body.NodeIDs}
	s.acceptMutation(w, r, ctx, "", body, m)
}
