// Package ws implements the WebSocket surface feeding the workspace view's
// live task indicator and toast widget.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// client is one connected workspace tab.
type client struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub tracks connected workspace clients and fans frames out to them. It
// retains the most recent task snapshot so a client connecting between
// mutations renders current state immediately instead of an empty list.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	lastSnapshot []byte
}

// NewHub creates a Hub with no connections and no retained snapshot.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// HandleWS upgrades the request, replays the retained task snapshot to the
// new client and keeps the connection registered until it drops.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	replay := h.lastSnapshot
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	if replay != nil {
		if err := ws.Write(ctx, websocket.MessageText, replay); err != nil {
			slog.Debug("websocket snapshot replay failed", "error", err)
		}
	}

	// Read loop: detects disconnects and consumes pings. Clients never send
	// application frames; anything received is discarded.
	go func() {
		defer func() {
			h.drop(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast fans a message out to every connected client. Snapshot frames
// are retained for replay to clients that connect later. Writes happen
// outside the registry lock so a failed client can be dropped inline.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	if msg.Type == EventTaskSnapshot {
		h.lastSnapshot = data
	}
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "error", err)
			h.drop(c)
		}
	}
}

// ConnectionCount returns the number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		c.cancel()
		delete(h.clients, c)
		slog.Info("websocket disconnected")
	}
}
