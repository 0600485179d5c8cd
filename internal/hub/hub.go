// Package hub pushes session snapshots and toasts to every open page over a
// websocket. It is the render sink of the orchestrator.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"studio/internal/orchestrator"
	"studio/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Message is the envelope written to page clients.
type Message struct {
	Type  string                     `json:"type"`
	State *session.Snapshot          `json:"state,omitempty"`
	Toast *orchestrator.Notification `json:"toast,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	mu          sync.Mutex
	clients     map[*client]struct{}
	last        []byte
	lastVersion uint64
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

var _ orchestrator.Notifier = (*Hub)(nil)

func New(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     logger.With().Str("component", "hub").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 << 10,
		},
	}
}

// Render broadcasts snap unless a newer snapshot has already gone out.
func (h *Hub) Render(snap session.Snapshot) {
	raw, err := json.Marshal(Message{Type: "state", State: &snap})
	if err != nil {
		h.log.Error().Err(err).Msg("encode state")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if snap.Version < h.lastVersion {
		return
	}
	h.last, h.lastVersion = raw, snap.Version
	h.broadcastLocked(raw)
}

func (h *Hub) Notify(n orchestrator.Notification) {
	raw, err := json.Marshal(Message{Type: "toast", Toast: &n})
	if err != nil {
		h.log.Error().Err(err).Msg("encode toast")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(raw)
}

// Clients reports the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close sends a close frame to every page and forgets them. Hijacked
// connections are not covered by http.Server.Shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(raw []byte) {
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			// Slow reader; drop it rather than stall the orchestrator.
			h.log.Warn().Msg("dropping slow websocket client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeWS upgrades the request and streams messages until the page goes away.
// A new client immediately receives the latest snapshot.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Int("clients", count).Msg("page connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump only watches for the close frame and pongs; commands arrive over
// plain HTTP.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.Warn().Err(err).Msg("websocket write")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
