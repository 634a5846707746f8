// ABOUTME: WebSocket hub for live grid invalidation events.
// ABOUTME: Manages connected clients and broadcasts row and schema change notices.

package live

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4 * 1024
)

// Event kinds carried by invalidation broadcasts
const (
	KindRows   = "rows"
	KindSchema = "schema"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow requests with no origin (like direct WebSocket clients)
		}
		allowedOrigins := []string{"localhost", "127.0.0.1", "::1"}
		for _, allowed := range allowedOrigins {
			if strings.Contains(origin, allowed) {
				return true
			}
		}
		return false
	},
}

// Event tells clients that data they may be displaying has changed.
type Event struct {
	Type  string `json:"type"`
	Org   string `json:"org"`
	Table string `json:"table"`
	Kind  string `json:"kind"`
}

// clientMessage is what connected clients may send upstream.
type clientMessage struct {
	Type string `json:"type"`
	Org  string `json:"org,omitempty"`
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	orgs      map[string]bool // empty means all orgs
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeConn sync.Once
}

// Hub fans invalidation events out to every connected client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// HandleWS upgrades the connection and manages the client lifecycle.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:   conn,
		send:   make(chan []byte, 256),
		orgs:   make(map[string]bool),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump(h.logger)
	go h.readPump(c)
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the event to every client subscribed to its org.
// Slow clients drop events rather than stalling the caller.
func (h *Hub) Broadcast(ev Event) {
	if ev.Type == "" {
		ev.Type = "invalidate"
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev.Org) {
			continue
		}
		select {
		case c.send <- data:
		case <-c.ctx.Done():
		default:
			// Buffer full, drop message (checking context would introduce TOCTOU race)
			h.logger.Warn("client send buffer full, dropping event",
				zap.String("org", ev.Org), zap.String("table", ev.Table))
		}
	}
}

func (c *client) wants(org string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.orgs) == 0 {
		return true
	}
	return c.orgs[org]
}

// readPump consumes subscription messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()

		c.cancel()
		c.closeOnce.Do(func() {
			close(c.send)
		})
		c.closeConn.Do(func() {
			c.conn.Close()
		})
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Warn("set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read", zap.Error(err))
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Debug("bad client message", zap.Error(err))
			continue
		}
		h.handleClientMessage(c, msg)
	}
}

func (h *Hub) handleClientMessage(c *client, msg clientMessage) {
	switch msg.Type {
	case "subscribe":
		if msg.Org != "" {
			c.mu.Lock()
			c.orgs[msg.Org] = true
			c.mu.Unlock()
		}
	case "unsubscribe":
		if msg.Org != "" {
			c.mu.Lock()
			delete(c.orgs, msg.Org)
			c.mu.Unlock()
		}
	case "ping":
		data, _ := json.Marshal(map[string]string{"type": "pong"})
		select {
		case c.send <- data:
		case <-c.ctx.Done():
		default:
		}
	default:
		h.logger.Debug("unknown client message", zap.String("type", msg.Type))
	}
}

// writePump drains the send channel and keeps the connection alive.
func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn.Do(func() {
			c.conn.Close()
		})
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Warn("set write deadline", zap.Error(err))
				return
			}
			if !ok {
				// Channel closed, send close message
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Debug("write close message", zap.Error(err))
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
