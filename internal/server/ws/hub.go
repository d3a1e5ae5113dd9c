// Package ws streams a betting session's events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/server/middleware"
	"github.com/alanyoungcy/lottobet/internal/service"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBufferSize = 64
)

// SessionViewer authorises a client for a session and supplies the snapshot
// sent on connect.
type SessionViewer interface {
	View(ctx context.Context, m domain.Member, id string) (service.SessionView, error)
}

// envelope is every frame the hub writes.
type envelope struct {
	Type    string          `json:"type"`
	Session any             `json:"session,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
}

// Hub tracks connected clients. Each client subscribes to its own session's
// channel on the event bus, so a client only ever sees its own cart.
type Hub struct {
	bus        domain.EventBus
	sessions   SessionViewer
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	clients    map[*client]bool
	logger     *slog.Logger
}

// NewHub creates a Hub. allowedOrigins restricts the Origin header; empty
// allows all.
func NewHub(bus domain.EventBus, sessions SessionViewer, allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		bus:      bus,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Run owns client registration until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.String("session_id", c.sessionID),
				slog.Int("total_clients", h.ClientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected",
				slog.String("session_id", c.sessionID),
				slog.Int("total_clients", h.ClientCount()),
			)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and streams the session named by ?session=.
// The member must own the session; otherwise the request fails before the
// upgrade.
// GET /ws?session=<id>
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	m, ok := middleware.MemberFrom(r.Context())
	if !ok {
		http.Error(w, `{"error":"missing member token"}`, http.StatusUnauthorized)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, `{"error":"session query parameter required"}`, http.StatusBadRequest)
		return
	}
	view, err := h.sessions.View(r.Context(), m, sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, `{"error":"session unavailable"}`, status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.bus.Subscribe(ctx, domain.SessionChannel(sessionID))
	if err != nil {
		cancel()
		h.logger.Error("ws: subscribe failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "event bus unavailable"))
		conn.Close()
		return
	}

	c := &client{
		hub:       h,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendBufferSize),
		cancel:    cancel,
	}
	select {
	case h.register <- c:
	case <-h.done:
		cancel()
		conn.Close()
		return
	}

	if snap, err := json.Marshal(envelope{Type: "snapshot", Session: view}); err == nil {
		c.enqueue(snap)
	}

	go c.writePump()
	go c.readPump()
	go c.forward(events)
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// client is one WebSocket connection bound to one session.
type client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	cancel    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// enqueue queues data for the write pump, dropping it when the client is
// slow or already closed.
func (c *client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("ws: dropping message for slow client", slog.String("session_id", c.sessionID))
	}
}

// close stops the subscription and the write pump. Safe to call twice.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}

// forward wraps bus payloads in an event envelope until the subscription
// ends.
func (c *client) forward(events <-chan []byte) {
	for payload := range events {
		msg, err := json.Marshal(envelope{Type: "event", Event: payload})
		if err != nil {
			continue
		}
		c.enqueue(msg)
	}
}

// readPump discards client frames and keeps the read deadline fresh. Any
// read error ends the connection.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump writes queued frames as text and pings periodically.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
