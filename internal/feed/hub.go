package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/aura/internal/artifact"
	"github.com/dyluth/aura/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// clientBuffer is the number of undelivered snapshots a client may lag
	// behind before it is dropped.
	clientBuffer = 4
)

// Message is the frame sent to stream clients. Every frame carries the full
// artifact set.
type Message struct {
	Type      string               `json:"type"`
	Sequence  uint64               `json:"sequence"`
	Artifacts []*artifact.Artifact `json:"artifacts"`
}

// MessageTypeSnapshot is the only frame type.
const MessageTypeSnapshot = "snapshot"

// Hub fans artifact snapshots out to websocket clients. A new client first
// receives the latest snapshot.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte
	seq     uint64
	closed  bool
	logger  zerolog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates a Hub with no clients.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Publish encodes items and queues them for every client. Clients whose
// buffer is full are disconnected.
func (h *Hub) Publish(items []*artifact.Artifact) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if items == nil {
		items = []*artifact.Artifact{}
	}
	h.seq++
	payload, err := json.Marshal(Message{Type: MessageTypeSnapshot, Sequence: h.seq, Artifacts: items})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	h.latest = payload

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().Str("event_type", "stream_client_lagging").Msg("stream_client_lagging")
			h.removeLocked(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) register(conn *websocket.Conn) (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if h.latest != nil {
		c.send <- h.latest
	}
	h.clients[c] = struct{}{}
	metrics.StreamClientConnected()
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	metrics.StreamClientDisconnected()
	c.once.Do(func() { close(c.send) })
}

// writePump owns all writes to the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Str("event_type", "stream_client_error").Err(err).Msg("stream_client_error")
			}
			return
		}
	}
}
