package handlers

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/models"
)

const (
	msgSnapshot   = "snapshot"
	msgFocus      = "focus"
	msgEnrollment = "enrollment"
	msgInput      = "input"
	msgDismiss    = "dismiss"

	sendBuffer = 32
)

// message is pushed to station pages.
type message struct {
	Type       string             `json:"type"`
	Snapshot   *capture.Snapshot  `json:"snapshot,omitempty"`
	Enrollment *models.Enrollment `json:"enrollment,omitempty"`
}

// inbound is sent by station pages.
type inbound struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Focused bool   `json:"focused"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans station messages out to every connected page. A slow page drops
// messages rather than stalling the capture loop.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues msg for every client and returns how many accepted it.
func (h *hub) broadcast(msg message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Unable to encode station message", "type", msg.Type, "err", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for c := range h.clients {
		select {
		case c.send <- data:
			sent++
		default:
			slog.Debug("Station page is behind, dropping message", "type", msg.Type)
		}
	}
	return sent
}

// writePump delivers queued messages until the client is removed.
func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("Station page disconnected", "err", err)
			return
		}
	}
}
