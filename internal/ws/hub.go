package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one websocket connection. Writes are serialized because
// gorilla/websocket allows a single concurrent writer.
type Client struct {
	UserID int64

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewClient(userID int64, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, conn: conn}
}

// Send writes ev to the connection.
func (c *Client) Send(ev Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

// Ping writes a keepalive control frame.
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub manages active WebSocket connections keyed by user ID and provides
// helper methods to send events to one or more users.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
	}
}

// Register adds a connection for its user.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
}

// Unregister removes a connection and reports whether it was the user's last.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.UserID]
	if !ok {
		return true
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.UserID)
		return true
	}
	return false
}

// Connected reports whether the user has at least one open connection.
func (h *Hub) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// SendToUsers sends ev to every connection of the given users. Failed
// connections are closed; their read loop unregisters them.
func (h *Hub) SendToUsers(userIDs []int64, ev Event) {
	h.mu.RLock()
	var targets []*Client
	for _, uid := range userIDs {
		for c := range h.clients[uid] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(ev); err != nil {
			c.conn.Close()
		}
	}
}
