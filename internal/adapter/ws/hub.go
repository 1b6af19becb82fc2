// Package ws implements the WebSocket adapter for real-time client communication.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/broadcast"
)

const writeTimeout = 5 * time.Second

var _ broadcast.Broadcaster = (*Hub)(nil)

// conn wraps a single WebSocket connection bound to one tenant.
type conn struct {
	ws       *websocket.Conn
	cancel   context.CancelFunc
	tenantID string
	userID   string
}

// Hub manages all active WebSocket connections and pushes tenant-scoped events.
type Hub struct {
	mu             sync.RWMutex
	conns          map[*conn]struct{}
	originPatterns []string
}

// NewHub creates a new WebSocket hub. allowedOrigin is the browser origin
// permitted to connect; empty disables the origin check (development).
func NewHub(allowedOrigin string) *Hub {
	h := &Hub{conns: make(map[*conn]struct{})}
	if allowedOrigin != "" {
		if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
			h.originPatterns = []string{u.Host}
		}
	}
	return h
}

// HandleWS upgrades the request and keeps the connection until the client
// leaves. It must be mounted behind the Auth and TenantID middleware; the
// connection only receives events for the request's tenant.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	c := &conn{ws: ws, tenantID: tenantID}
	if u := middleware.UserFromContext(r.Context()); u != nil {
		c.userID = u.ID
	}

	// Clients never send anything meaningful; CloseRead discards input and
	// cancels ctx once the peer goes away.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c.cancel = cancel
	ctx = ws.CloseRead(ctx)

	h.add(c)
	slog.Info("websocket connected", "remote", r.RemoteAddr, "tenant_id", c.tenantID)

	<-ctx.Done()
	h.remove(c)
	_ = ws.Close(websocket.StatusNormalClosure, "")
}

// BroadcastToTenant sends an event to every connection of tenantID.
func (h *Hub) BroadcastToTenant(ctx context.Context, tenantID, eventType string, payload any) {
	data, err := encode(eventType, payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	h.send(ctx, data, func(c *conn) bool { return c.tenantID == tenantID })
}

// send writes data to matching connections. Failed connections are dropped.
func (h *Hub) send(ctx context.Context, data []byte, match func(*conn) bool) {
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("websocket write failed", "tenant_id", c.tenantID, "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// TenantConnectionCount returns the number of connections for tenantID.
func (h *Hub) TenantConnectionCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.conns {
		if c.tenantID == tenantID {
			n++
		}
	}
	return n
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "tenant_id", c.tenantID)
	}
}
