// Package transport implements Component F: HTTP request routing keyed by
// workspace id, plus the bidirectional event channel with room-scoped
// fan-out (Hub).
package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/workforce-hq/workforce/internal/registry"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// Service is the HTTP+websocket front door over a Registry, mirroring the
// teacher's workflow.Service shape: request routing decoupled from the
// domain logic it dispatches into.
type Service struct {
	registry *registry.Registry
	hub      *Hub
	logger   *zap.SugaredLogger

	host string
	port int
}

// NewService builds a transport Service bound to reg. host/port feed the
// GET /workspaces server block.
func NewService(reg *registry.Registry, logger *zap.SugaredLogger, host string, port int) *Service {
	return &Service{
		registry: reg,
		hub:      newHub(logger),
		logger:   logger,
		host:     host,
		port:     port,
	}
}

// lanEnabled reports whether the bound host is reachable from the LAN
// rather than loopback-only, surfaced to the drawing UI so it can show a
// LAN-sharing banner (original_source/workforce/server/ server-info block).
func (s *Service) lanEnabled() bool {
	return s.host != "127.0.0.1" && s.host != "localhost" && s.host != "::1"
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func reqID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// LoadRoutes wires the full §6 HTTP surface onto parentRouter.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	parentRouter.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	parentRouter.HandleFunc("/workspaces", s.handleListWorkspaces).Methods(http.MethodGet)
	parentRouter.HandleFunc("/workspace/register", s.handleRegisterWorkspace).Methods(http.MethodPost)

	ws := parentRouter.PathPrefix("/workspace/{workspace_id}").Subrouter()
	ws.Use(requestIDMiddleware)
	ws.Use(jsonMiddleware)

	ws.HandleFunc("/get-graph", s.handleGetGraph).Methods(http.MethodGet)
	ws.HandleFunc("/get-node-log/{node_id}", s.handleGetNodeLog).Methods(http.MethodGet)
	ws.HandleFunc("/add-node", s.handleAddNode).Methods(http.MethodPost)
	ws.HandleFunc("/remove-node", s.handleRemoveNode).Methods(http.MethodPost)
	ws.HandleFunc("/add-edge", s.handleAddEdge).Methods(http.MethodPost)
	ws.HandleFunc("/remove-edge", s.handleRemoveEdge).Methods(http.MethodPost)
	ws.HandleFunc("/edit-edge-type", s.handleEditEdgeType).Methods(http.MethodPost)
	ws.HandleFunc("/edit-status", s.handleEditStatus).Methods(http.MethodPost)
	ws.HandleFunc("/edit-statuses", s.handleEditStatuses).Methods(http.MethodPost)
	ws.HandleFunc("/edit-node-position", s.handleEditNodePosition).Methods(http.MethodPost)
	ws.HandleFunc("/edit-node-positions", s.handleEditNodePositions).Methods(http.MethodPost)
	ws.HandleFunc("/edit-wrapper", s.handleEditWrapper).Methods(http.MethodPost)
	ws.HandleFunc("/edit-node-label", s.handleEditNodeLabel).Methods(http.MethodPost)
	ws.HandleFunc("/save-node-log", s.handleSaveNodeLog).Methods(http.MethodPost)
	ws.HandleFunc("/remove-node-logs", s.handleRemoveNodeLogs).Methods(http.MethodPost)
	ws.HandleFunc("/client-connect", s.handleClientConnect).Methods(http.MethodPost)
	ws.HandleFunc("/client-disconnect", s.handleClientDisconnect).Methods(http.MethodPost)
	ws.HandleFunc("/run", s.handleRun).Methods(http.MethodPost)
	ws.HandleFunc("/clients", s.handleClients).Methods(http.MethodGet)
	ws.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	ws.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	ws.HandleFunc("/save-as", s.handleSaveAs).Methods(http.MethodPost)
	ws.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	ws.HandleFunc("/", s.handleDeleteWorkspace).Methods(http.MethodDelete)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
