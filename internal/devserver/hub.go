package devserver

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsClient is one websocket connection of an authenticated user.
type wsClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

func newWSClient(conn *websocket.Conn, userID string) *wsClient {
	return &wsClient{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

// writeLoop drains the send channel onto the connection and keeps the
// peer alive with pings. Exits when the send channel is closed.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.Close()
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// trySend queues a frame without blocking; a slow consumer loses frames.
func (c *wsClient) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// hub tracks the live connections per user. A user is online while at
// least one connection is registered.
type hub struct {
	mu     sync.RWMutex
	byUser map[string]map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{byUser: make(map[string]map[*wsClient]struct{})}
}

// register adds a connection and reports whether the user just came
// online.
func (h *hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.byUser[c.userID]
	if !ok {
		conns = make(map[*wsClient]struct{})
		h.byUser[c.userID] = conns
	}
	conns[c] = struct{}{}
	return !ok
}

// unregister removes a connection and reports whether the user just went
// offline.
func (h *hub) unregister(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.byUser[c.userID]
	if !ok {
		return false
	}
	if _, member := conns[c]; !member {
		return false
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.byUser, c.userID)
		return true
	}
	return false
}

func (h *hub) sendToUser(userID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.trySend(msg)
	}
}

func (h *hub) broadcastExcept(userID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, conns := range h.byUser {
		if id == userID {
			continue
		}
		for c := range conns {
			c.trySend(msg)
		}
	}
}

func (h *hub) isOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byUser[userID]
	return ok
}

func (h *hub) onlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.byUser))
	for id := range h.byUser {
		out = append(out, id)
	}
	return out
}
