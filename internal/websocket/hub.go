package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"qroll/internal/middleware"
	"qroll/internal/models"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Only pages served by the projector itself may connect.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// Hub fans session snapshots out to projector pages, keyed by session id.
// Each page has its own writer goroutine; Publish only queues.
type Hub struct {
	mu          sync.Mutex
	connections map[string][]*client
	last        map[string][]byte
}

// client holds at most one pending snapshot. A newer snapshot replaces one
// the page has not been sent yet.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		last:        make(map[string][]byte),
	}
}

// HandleWebSocket expects the view token middleware to have run.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 1)}
	h.registerConnection(sessionID, c)
	go c.writePump()

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)
	if data, ok := h.last[sessionID]; ok {
		c.queue(data)
	}

	log.Printf("Projector connected: session %s (total: %d)", sessionID, len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.connections[sessionID]
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			c.close()
			break
		}
	}
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
	}

	log.Printf("Projector disconnected: session %s", sessionID)
}

// Publish queues snap for every page watching its session and returns without
// waiting for the writes. The latest snapshot is kept so pages connecting
// later start from it; an ended snapshot drops it.
func (h *Hub) Publish(snap models.SessionSnapshot) {
	data, err := json.Marshal(models.WSMessage{Type: "session", Payload: snap})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if snap.Ended {
		delete(h.last, snap.SessionID)
	} else {
		h.last[snap.SessionID] = data
	}
	for _, c := range h.connections[snap.SessionID] {
		c.queue(data)
	}
}

// Connections returns the number of pages watching sessionID.
func (h *Hub) Connections(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections[sessionID])
}

// Close disconnects every page.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.connections {
		for _, c := range conns {
			c.close()
		}
	}
	h.connections = make(map[string][]*client)
}

// queue must be called with the hub lock held.
func (c *client) queue(data []byte) {
	select {
	case c.send <- data:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}

// close must be called with the hub lock held, once per client.
func (c *client) close() {
	close(c.send)
	c.conn.Close()
}

func (c *client) writePump() {
	for data := range c.send {
		write(c.conn, data)
	}
}

func write(conn *websocket.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("projector write: %v", err)
	}
}
