// Package hub fans session events out to websocket clients and routes
// their terminal input back to the session manager.
package hub

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/user/cloudmux/internal/events"
)

type (
	InputFunc  func(sessionID, data string) error
	ResizeFunc func(sessionID string, cols, rows int) error
)

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan hubBroadcast
	token      string
	mu         sync.RWMutex
	running    atomic.Bool

	cbMu     sync.RWMutex
	onInput  InputFunc
	onResize ResizeFunc
}

func New(token string) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan hubBroadcast, 1024),
		token:      token,
	}
}

func (h *Hub) SetOnTerminalInput(fn InputFunc) {
	h.cbMu.Lock()
	h.onInput = fn
	h.cbMu.Unlock()
}

func (h *Hub) SetOnTerminalResize(fn ResizeFunc) {
	h.cbMu.Lock()
	h.onResize = fn
	h.cbMu.Unlock()
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			hello, _ := json.Marshal(HelloMessage{Type: "hello", ClientID: c.id})
			c.send <- hello
			go c.writePump(ctx)
			go c.readPump(ctx)
			slog.Info("client connected", "client", c.id, "total", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
			slog.Info("client disconnected", "client", c.id, "total", h.ClientCount())

		case b := <-h.broadcast:
			h.broadcastToClients(b)
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	client := newClient(conn, h)
	select {
	case h.register <- client:
	default:
		slog.Warn("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
	}
}

// Emit implements events.Sink. Events are queued for the run loop and
// dropped with a warning when the queue is full.
func (h *Hub) Emit(channel string, payload any) {
	kind, sessionID, _ := events.Split(channel)
	data, err := json.Marshal(EventMessage{
		Type:      "event",
		Channel:   channel,
		Kind:      string(kind),
		SessionID: sessionID,
		Payload:   payload,
		Ts:        time.Now().UnixMilli(),
	})
	if err != nil {
		slog.Error("marshal event failed", "channel", channel, "error", err)
		return
	}
	select {
	case h.broadcast <- hubBroadcast{data: data, sessionID: sessionID}:
	default:
		slog.Warn("broadcast queue full, dropping event", "channel", channel)
	}
}

func (h *Hub) broadcastToClients(b hubBroadcast) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wantsSession(b.sessionID) {
			continue
		}
		select {
		case c.send <- b.data:
		default:
			slog.Warn("client send buffer full, dropping message", "client", c.id)
		}
	}
}

func (h *Hub) SendError(c *Client, sessionID, message string) {
	data, err := json.Marshal(ErrorMessage{Type: "error", SessionID: sessionID, Message: message})
	if err != nil {
		return
	}
	// Sends race with Run closing c.send on unregister.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleTerminalInput(c *Client, sessionID, data string) {
	h.cbMu.RLock()
	fn := h.onInput
	h.cbMu.RUnlock()
	if fn == nil {
		h.SendError(c, sessionID, "terminal input is not available")
		return
	}
	if err := fn(sessionID, data); err != nil {
		h.SendError(c, sessionID, err.Error())
	}
}

func (h *Hub) handleTerminalResize(c *Client, sessionID string, cols, rows int) {
	h.cbMu.RLock()
	fn := h.onResize
	h.cbMu.RUnlock()
	if fn == nil {
		h.SendError(c, sessionID, "terminal resize is not available")
		return
	}
	if err := fn(sessionID, cols, rows); err != nil {
		h.SendError(c, sessionID, err.Error())
	}
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.running.Load() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		slog.Warn("unregister queue full, forcing close", "client", c.id)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
