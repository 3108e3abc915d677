// Package realtime streams vendor request status changes to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
	"github.com/da-luiz/Clear-Chain/internal/shared"
	"github.com/da-luiz/Clear-Chain/internal/vendorrequests"
	"github.com/da-luiz/Clear-Chain/internal/workflow"
)

const (
	// EventStatusChanged is the envelope type of StatusChanged messages.
	EventStatusChanged = "vendor_request.status_changed"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type string                       `json:"type"`
	Data vendorrequests.StatusChanged `json:"data"`
}

type message struct {
	evt     vendorrequests.StatusChanged
	payload []byte
}

type client struct {
	principal shared.Principal
	conn      *websocket.Conn
	send      chan []byte
}

// wants reports whether the client may see evt. Reviewers see every request;
// everyone else only sees their own.
func (c *client) wants(evt vendorrequests.StatusChanged) bool {
	if evt.RequestedBy == c.principal.UserID {
		return true
	}
	for _, capability := range []workflow.Capability{workflow.CapReviewCompliance, workflow.CapReviewFinance, workflow.CapReviewAdmin} {
		if workflow.Allows(c.principal.Role, capability) {
			return true
		}
	}
	return false
}

// Hub tracks connected clients and broadcasts events to them.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}
}

// NewHub constructs a hub. With no allowed origins the upgrader only accepts
// same-host requests.
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:     logger,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.ContainsFunc(allowedOrigins, func(o string) bool {
				return o == "*" || strings.EqualFold(o, origin)
			})
		}
	}
	return h
}

// Run dispatches events until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("websocket client connected", slog.Int64("user_id", c.principal.UserID))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("websocket client disconnected", slog.Int64("user_id", c.principal.UserID))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.wants(msg.evt) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Publish implements vendorrequests.EventPublisher.
func (h *Hub) Publish(ctx context.Context, evt vendorrequests.StatusChanged) error {
	payload, err := json.Marshal(Envelope{Type: EventStatusChanged, Data: evt})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- message{evt: evt, payload: payload}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades an authenticated request to a websocket subscription.
// The client is registered before the handshake completes so no event
// committed after the upgrade response is missed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	c := &client{principal: *principal, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Info("websocket upgrade", slog.Any("error", err))
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		return
	}
	c.conn = conn
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read", slog.Any("error", err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
