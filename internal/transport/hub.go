package transport

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/workforce-hq/workforce/internal/eventbus"
	"github.com/workforce-hq/workforce/internal/workspace"
)

// transportMessage is the envelope delivered over the event channel, the
// wire shape of §4.F's translation table entries.
type transportMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	typ  workspace.ClientType
	mu   sync.Mutex // guards concurrent writes to conn, which gorilla/websocket forbids
}

func (c *wsClient) send(msg transportMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteJSON(msg)
}

// Hub brokers the bidirectional event channel of Component F: each
// connected client joins the room `ws:<workspace_id>`; the hub subscribes
// translation handlers to that workspace's event bus exactly once and fans
// out transport messages to the room.
type Hub struct {
	mu         sync.Mutex
	rooms      map[string]map[string]*wsClient // workspace_id -> client_id -> client
	subscribed map[string]bool                 // workspace_id -> translation handlers attached
	logger     *zap.SugaredLogger
}

func newHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[string]*wsClient),
		subscribed: make(map[string]bool),
		logger:     logger,
	}
}

// Join registers conn under workspaceID's room and ensures the workspace's
// domain events are wired to this hub.
func (h *Hub) Join(workspaceID, clientID string, typ workspace.ClientType, conn *websocket.Conn, ctx *workspace.Context) {
	h.mu.Lock()
	room, ok := h.rooms[workspaceID]
	if !ok {
		room = make(map[string]*wsClient)
		h.rooms[workspaceID] = room
	}
	room[clientID] = &wsClient{conn: conn, typ: typ}
	needsSubscribe := !h.subscribed[workspaceID]
	if needsSubscribe {
		h.subscribed[workspaceID] = true
	}
	h.mu.Unlock()

	if needsSubscribe {
		h.attachTranslations(workspaceID, ctx)
	}
}

// Leave removes a client from its room, closing nothing (the caller owns
// the connection's lifecycle).
func (h *Hub) Leave(workspaceID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[workspaceID]; ok {
		delete(room, clientID)
	}
}

func (h *Hub) broadcast(workspaceID string, msg transportMessage, filter func(workspace.ClientType) bool) {
	h.mu.Lock()
	room := h.rooms[workspaceID]
	clients := make([]*wsClient, 0, len(room))
	for _, c := range room {
		if filter == nil || filter(c.typ) {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.send(msg)
	}
}

func (h *Hub) sendTo(workspaceID, clientID string, msg transportMessage) {
	h.mu.Lock()
	c, ok := h.rooms[workspaceID][clientID]
	h.mu.Unlock()
	if ok {
		c.send(msg)
	}
}

// attachTranslations wires the event->transport translation table of §4.F
// to ctx's bus, once per workspace.
func (h *Hub) attachTranslations(workspaceID string, ctx *workspace.Context) {
	ctx.Bus.Subscribe(eventbus.GraphUpdated, func(ev eventbus.Event) {
		h.broadcast(workspaceID, transportMessage{Type: "graph_update", Data: ev.Payload}, nil)
	})
	ctx.Bus.Subscribe(eventbus.NodeReady, func(ev eventbus.Event) {
		h.broadcast(workspaceID, transportMessage{Type: "node_ready", Data: ev.Payload}, func(t workspace.ClientType) bool {
			return t == workspace.ClientRunner
		})
	})
	statusChange := func(ev eventbus.Event) {
		h.broadcast(workspaceID, transportMessage{Type: "status_change", Data: ev.Payload}, nil)
	}
	ctx.Bus.Subscribe(eventbus.NodeStarted, statusChange)
	ctx.Bus.Subscribe(eventbus.NodeFinished, statusChange)
	ctx.Bus.Subscribe(eventbus.NodeFailed, statusChange)
	ctx.Bus.Subscribe(eventbus.RunComplete, func(ev eventbus.Event) {
		payload, ok := ev.Payload.(map[string]string)
		if !ok {
			return
		}
		runID := payload["run_id"]
		clientID, found := ctx.Clients.ClientForRun(runID)
		if !found {
			return
		}
		h.sendTo(workspaceID, clientID, transportMessage{Type: "run_complete", Data: payload})
	})
}
