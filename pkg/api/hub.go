package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 5 * time.Second

	// sendBuffer is how many events a client may lag behind before it is dropped
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one websocket connection and its outgoing queue. Only the
// writer goroutine touches conn for writes.
type client struct {
	conn *websocket.Conn
	send chan interface{}
}

// Hub fans prediction events out to connected websocket clients
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *zap.Logger
	onCount func(n int)
}

// NewHub creates an empty hub. onCount, if set, is called with the client
// count whenever it changes.
func NewHub(logger *zap.Logger, onCount func(n int)) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		onCount: onCount,
	}
}

// Serve upgrades the request and holds the connection until the client
// goes away. Incoming messages are discarded.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan interface{}, sendBuffer)}
	h.add(c)
	go h.writePump(c)
	defer h.remove(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the client's queue until the hub closes it
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for v := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(v); err != nil {
			h.logger.Debug("Dropping websocket client", zap.Error(err))
			h.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// Broadcast queues v for every client without blocking. Clients whose
// queue is full are dropped.
func (h *Hub) Broadcast(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- v:
		default:
			h.logger.Debug("Dropping slow websocket client")
			h.detach(c)
		}
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.detach(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.notify()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(c)
}

// detach closes the client's queue, which makes its writer close the
// connection. It must be called with mu held and is a no-op for clients
// already detached.
func (h *Hub) detach(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.notify()
}

// notify must be called with mu held
func (h *Hub) notify() {
	if h.onCount != nil {
		h.onCount(len(h.clients))
	}
}
