package transport

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/workforce-hq/workforce/internal/apperr"
	"github.com/workforce-hq/workforce/internal/graph"
	"github.com/workforce-hq/workforce/internal/idgen"
	"github.com/workforce-hq/workforce/internal/workspace"
)

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		gui, runner := e.Ctx.Clients.Snapshot()
		out = append(out, map[string]any{
			"workspace_id":  e.WorkspaceID,
			"workfile_path": e.WorkfilePath,
			"client_count":  e.Ctx.ClientCount(),
			"clients":       map[string]any{"gui": gui, "runner": runner},
			"created_at":    e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"server": map[string]any{
			"host":        s.host,
			"port":        s.port,
			"lan_enabled": s.lanEnabled(),
		},
		"workspaces": out,
	})
}

func (s *Service) handleRegisterWorkspace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Path == "" {
		apperr.Write(w, apperr.CodeBadPath, "path required", http.StatusBadRequest)
		return
	}
	abs, err := filepath.Abs(body.Path)
	if err != nil {
		apperr.Write(w, apperr.CodeBadPath, "path required", http.StatusBadRequest)
		return
	}
	e, err := s.registry.GetOrCreate(abs, false)
	if err != nil {
		apperr.Write(w, apperr.CodeInternal, err.Error(), http.StatusInternalServerError)
		return
	}
	gui, runner := e.Ctx.Clients.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_id":  e.WorkspaceID,
		"url":           s.baseURL(e.WorkspaceID),
		"path":          e.WorkfilePath,
		"client_count":  e.Ctx.ClientCount(),
		"clients":       map[string]any{"gui": gui, "runner": runner},
	})
}

func (s *Service) baseURL(workspaceID string) string {
	return "http://" + s.host + ":" + strconv.Itoa(s.port) + "/workspace/" + workspaceID
}

func (s *Service) handleClientConnect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkfilePath string `json:"workfile_path"`
		ClientType   string `json:"client_type"`
		SocketioSID  string `json:"socketio_sid"`
	}
	if err := decodeJSON(r, &body); err != nil || body.WorkfilePath == "" {
		apperr.Write(w, apperr.CodeBadRequest, "workfile_path required", http.StatusBadRequest)
		return
	}
	abs, err := filepath.Abs(body.WorkfilePath)
	if err != nil {
		apperr.Write(w, apperr.CodeBadPath, "invalid workfile_path", http.StatusBadRequest)
		return
	}
	e, err := s.registry.GetOrCreate(abs, true)
	if err != nil {
		apperr.Write(w, apperr.CodeInternal, err.Error(), http.StatusInternalServerError)
		return
	}

	typ := workspace.ClientGUI
	if body.ClientType == string(workspace.ClientRunner) {
		typ = workspace.ClientRunner
	}
	clientID := idgen.New()
	e.Ctx.Clients.Register(clientID, typ)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "connected",
		"workspace_id": e.WorkspaceID,
		"client_id":    clientID,
		"client_type":  typ,
	})
}

func (s *Service) handleClientDisconnect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["workspace_id"]
	var body struct {
		ClientType string `json:"client_type"`
		ClientID   string `json:"client_id"`
	}
	_ = decodeJSON(r, &body)

	if e, ok := s.registry.Get(id); ok && body.ClientID != "" {
		e.Ctx.Clients.Unregister(body.ClientID)
	}
	s.registry.DisconnectClient(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected", "workspace_id": id})
}

func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	var body struct {
		Nodes       []string `json:"nodes"`
		SocketioSID string   `json:"socketio_sid"`
	}
	_ = decodeJSON(r, &body)

	runID, _, err := ctx.StartRun(body.Nodes)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	clientID := idgen.New()
	ctx.Clients.Register(clientID, workspace.ClientRunner)
	ctx.Clients.BindRun(clientID, runID)

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "run_id": runID, "client_id": clientID})
}

func (s *Service) handleClients(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	gui, runner := ctx.Clients.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"gui": gui, "runner": runner})
}

func (s *Service) handleRuns(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	g, err := ctx.Store.Load()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	var runs []workspace.RunSummary
	for _, runID := range ctx.Runs.ActiveRunIDs() {
		scope, subsetOnly, ok := ctx.Runs.Get(runID)
		if !ok {
			continue
		}
		if len(scope) == 0 {
			for _, n := range ctx.Runs.NodesMappedToRun(runID) {
				scope[n] = true
			}
		}
		summary := workspace.RunSummary{RunID: runID, SubsetOnly: subsetOnly, NodesTotal: len(scope)}
		for id := range scope {
			n, ok := g.Nodes[id]
			if !ok {
				continue
			}
			switch n.Status {
			case graph.NodeStatusRun, graph.NodeStatusRunning:
				summary.NodesRunning++
			case graph.NodeStatusFail:
				summary.NodesFailed++
			}
		}
		runs = append(runs, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Service) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.resolveWorkspace(w, r)
	if !ok {
		return
	}
	res, err := ctx.Stop()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["workspace_id"]
	s.registry.Destroy(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "workspace_id": id})
}

func (s *Service) handleSaveAs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["workspace_id"]
	e, ok := s.registry.Get(id)
	if !ok {
		apperr.WriteJSON(w, apperr.ErrWorkspaceGone)
		return
	}
	var body struct {
		NewPath string `json:"new_path"`
	}
	if err := decodeJSON(r, &body); err != nil || body.NewPath == "" {
		apperr.Write(w, apperr.CodeBadPath, "new_path required", http.StatusBadRequest)
		return
	}
	if len(e.Ctx.Runs.ActiveRunIDs()) > 0 {
		apperr.WriteJSON(w, apperr.ErrActiveRun)
		return
	}

	newPath, err := filepath.Abs(body.NewPath)
	if err != nil {
		apperr.Write(w, apperr.CodeBadPath, "invalid new_path", http.StatusBadRequest)
		return
	}
	g, err := e.Ctx.Store.Load()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	newStore := graph.NewStore(newPath, graph.NewGraphMLCodec())
	if err := newStore.Save(g); err != nil {
		apperr.Write(w, apperr.CodeInternal, err.Error(), http.StatusInternalServerError)
		return
	}
	newID, err := idgen.Workspace(newPath)
	if err != nil {
		apperr.Write(w, apperr.CodeInternal, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "saved",
		"new_path":        newPath,
		"new_workspace_id": newID,
		"new_base_url":    s.baseURL(newID),
	})
}
