package utility

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// client serializes writes to one connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Hub holds one live connection per user: user id -> connection.
type Hub struct {
	mu       sync.Mutex
	clients  map[int64]*client
	Upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]*client),
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Allow CORS for development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Register replaces any previous connection of the user.
func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[userID]; ok && old.conn != conn {
		old.conn.Close()
	}
	h.clients[userID] = &client{conn: conn}
	log.Info().Int64("user_id", userID).Msg("WebSocket Client Connected")
}

// Unregister drops the user's connection if it is still conn.
func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[userID]; ok && current.conn == conn {
		delete(h.clients, userID)
		log.Info().Int64("user_id", userID).Msg("WebSocket Client Disconnected")
	}
}

func (h *Hub) Connected(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[userID]
	return ok
}

// Push sends v as JSON to the user, reporting whether a client received it.
// The write happens outside the hub lock and gives up after writeWait.
func (h *Hub) Push(userID int64, v any) bool {
	h.mu.Lock()
	cl, ok := h.clients[userID]
	h.mu.Unlock()
	if !ok {
		return false
	}

	cl.mu.Lock()
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := cl.conn.WriteJSON(v)
	cl.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to send WS message, removing client")
		cl.conn.Close()
		h.Unregister(userID, cl.conn)
		return false
	}
	return true
}
