package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

// client pairs a connection with its metadata and a write lock: gorilla
// connections allow at most one concurrent writer, and broadcasts to the same
// user can overlap.
type client struct {
	info    ConnInfo
	writeMu sync.Mutex
}

// Hub maintains the live connections of every user. Rooms are keyed by user
// id, not by chat: one user-level group fans out to all of that user's chats.
type Hub struct {
	mu    sync.RWMutex
	users map[int64]map[*websocket.Conn]*client
	log   *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		users: make(map[int64]map[*websocket.Conn]*client),
		log:   log,
	}
}

// AddClient registers a websocket connection under the owning user.
func (h *Hub) AddClient(userID int64, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[*websocket.Conn]*client)
	}
	h.users[userID][conn] = &client{info: info}
}

// RemoveClient removes a connection; the user's room disappears with its last one.
func (h *Hub) RemoveClient(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
}

// Connections reports how many live connections the user has.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// SendToUser writes payload to every live connection of the user. Users with
// no connection are skipped; delivery is at-most-once with no replay, clients
// reconcile through the REST listing. Failed connections are closed and
// dropped from the hub.
func (h *Hub) SendToUser(userID int64, payload []byte) {
	h.mu.RLock()
	conns := make(map[*websocket.Conn]*client, len(h.users[userID]))
	for conn, cl := range h.users[userID] {
		conns[conn] = cl
	}
	h.mu.RUnlock()

	for conn, cl := range conns {
		cl.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		cl.writeMu.Unlock()
		if err != nil {
			h.log.Warn("websocket write failed",
				zap.Int64("user_id", userID),
				zap.String("conn_id", cl.info.ConnID),
				zap.Error(err))
			conn.Close()
			h.RemoveClient(userID, conn)
			observability.IncWSEvent("user", "ws_error")
		}
	}
}
