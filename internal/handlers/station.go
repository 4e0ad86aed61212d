package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// HandleStation connects a station page. The page forwards the hidden input's
// value and focus changes; the server pushes snapshots and focus commands.
func (h *Handler) HandleStation(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade to WebSocket", "err", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.hub.add(c)
	defer h.hub.remove(c)
	go c.writePump()

	slog.Info("Station page connected", "remote", r.RemoteAddr, "pages", h.hub.count())

	snap := h.ctrl.Snapshot()
	h.hub.broadcast(message{Type: msgSnapshot, Snapshot: &snap})
	// A new page has not been focused yet.
	h.field.Blur()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Station page read failed", "err", err)
			}
			slog.Info("Station page disconnected", "remote", r.RemoteAddr)
			return
		}

		switch msg.Type {
		case msgInput:
			if h.activeID() != "" {
				h.field.Set(msg.Value)
			}
		case msgFocus:
			if !msg.Focused {
				h.field.Blur()
			}
		case msgDismiss:
			h.ctrl.Dismiss()
		default:
			slog.Debug("Ignoring station message", "type", msg.Type)
		}
	}
}
