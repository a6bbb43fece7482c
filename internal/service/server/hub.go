package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vertextoedge/localai-desktop/internal/domain/event"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 512
)

// WSMessage is the envelope of every WebSocket message
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.Remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub relays download events to WebSocket clients. Each client has its
// own buffered queue; a full queue drops progress messages and evicts the
// client on anything else, so queued messages stay in publish order.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	bufSize int
	logger  *zap.Logger
	dropped int64
}

// Ensure Hub implements event.EventHandler
var _ event.EventHandler = (*Hub)(nil)

// NewHub creates a hub with per-client queues of bufSize messages
func NewHub(bufSize int, logger *zap.Logger) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		bufSize: bufSize,
		logger:  logger,
	}
}

// Add registers conn and starts its writer
func (h *Hub) Add(conn *websocket.Conn) *client {
	c := &client{conn: conn, hub: h, send: make(chan []byte, h.bufSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	return c
}

// Remove unregisters c and closes its queue. Safe to call more than once.
func (h *Hub) Remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many progress messages slow clients missed
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Handle broadcasts ev to every client
func (h *Hub) Handle(ev event.DomainEvent) error {
	channel, payload, ok := event.ToWire(ev)
	if !ok {
		return nil
	}
	data, err := json.Marshal(WSMessage{Type: channel, Payload: payload})
	if err != nil {
		return err
	}
	h.broadcast(data, channel == event.ChannelProgress)
	return nil
}

// HandledEvents returns the events relayed to clients
func (h *Hub) HandledEvents() []string {
	return event.RelayEvents()
}

func (h *Hub) broadcast(data []byte, droppable bool) {
	var slow []*client

	// Sends happen under the read lock so Remove cannot close a queue mid-send
	h.mu.RLock()
	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			if droppable {
				dropped++
				continue
			}
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		h.mu.Lock()
		h.dropped += int64(dropped)
		h.mu.Unlock()
	}
	for _, c := range slow {
		h.logger.Warn("ws client too slow, disconnecting", zap.String("remote_addr", c.conn.RemoteAddr().String()))
		h.Remove(c)
	}
}
