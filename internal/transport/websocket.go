package transport

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/workforce-hq/workforce/internal/apperr"
	"github.com/workforce-hq/workforce/internal/idgen"
	"github.com/workforce-hq/workforce/internal/workspace"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The drawing/editing UI and runner clients are same-origin tooling
	// processes, not browser pages subject to third-party origin checks.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and joins the workspace's room
// (§4.F, "each client joins a room named after its workspace"). The
// client_id and client_type are supplied as query parameters, established
// by a prior call to client-connect.
func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["workspace_id"]
	e, ok := s.registry.Get(workspaceID)
	if !ok {
		apperr.WriteJSON(w, apperr.ErrWorkspaceGone)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	typ := workspace.ClientGUI
	if r.URL.Query().Get("client_type") == string(workspace.ClientRunner) {
		typ = workspace.ClientRunner
	}
	if clientID == "" {
		clientID = idgen.New()
		e.Ctx.Clients.Register(clientID, typ)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnw("websocket upgrade failed", "workspace_id", workspaceID, "error", err)
		}
		return
	}
	defer conn.Close()

	s.hub.Join(workspaceID, clientID, typ, conn, e.Ctx)
	defer s.hub.Leave(workspaceID, clientID)

	// The only traffic expected from a client on this socket is the
	// connection's own keepalive pings; discard anything else. A read
	// error (including a close frame) ends the session.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
