// Package websocket delivers approval events to connected users over
// websocket connections. The hub implements the application layer's
// notification gateway, so approval services stay unaware of the wire.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/baeksung/approval-engine/internal/application/port"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// connection is one live socket for one user. A user may hold several
// connections (multiple tabs or devices).
type connection struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte
}

// Hub tracks connections per user and fans events out to them.
type Hub struct {
	mu       sync.RWMutex
	byUser   map[string]map[string]*connection
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		byUser: make(map[string]map[string]*connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Internal service behind the corporate gateway; the JWT
			// already authenticated the user.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeConnection upgrades the request and pumps events until the
// client disconnects. Blocks for the lifetime of the connection.
func (h *Hub) ServeConnection(c *gin.Context, userID string) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	conn := &connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(conn)

	h.logger.Info("Websocket connected",
		zap.String("user_id", userID), zap.String("connection_id", conn.id))

	go h.writePump(conn)
	h.readPump(conn)
}

// Notify implements port.NotificationGateway. Returns an error only when
// the user has no live connection or every connection's buffer is full;
// callers treat that as a skipped delivery.
func (h *Hub) Notify(ctx context.Context, userID string, notification port.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	// Send channels are closed only under the write lock, so the sends
	// must stay under the read lock. They are non-blocking, the lock is
	// held only for the fan-out.
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.byUser[userID]
	if len(conns) == 0 {
		return fmt.Errorf("user %s has no active connection", userID)
	}

	delivered := 0
	for _, conn := range conns {
		select {
		case conn.send <- payload:
			delivered++
		default:
			h.logger.Warn("Dropping notification, send buffer full",
				zap.String("user_id", userID), zap.String("connection_id", conn.id))
		}
	}
	if delivered == 0 {
		return fmt.Errorf("no connection of user %s accepted the event", userID)
	}
	return nil
}

// ConnectedUsers returns the number of users with at least one live
// connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Close tears down every live connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.byUser {
		for _, conn := range conns {
			close(conn.send)
		}
	}
	h.byUser = make(map[string]map[string]*connection)
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byUser[conn.userID] == nil {
		h.byUser[conn.userID] = make(map[string]*connection)
	}
	h.byUser[conn.userID][conn.id] = conn
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.byUser[conn.userID]
	if !ok {
		return
	}
	if _, ok := conns[conn.id]; !ok {
		return
	}
	delete(conns, conn.id)
	if len(conns) == 0 {
		delete(h.byUser, conn.userID)
	}
	close(conn.send)
}

// readPump drains client frames. Clients never send application data;
// reading is only needed to process control frames and notice the close.
func (h *Hub) readPump(conn *connection) {
	defer func() {
		h.unregister(conn)
		conn.ws.Close()
		h.logger.Info("Websocket disconnected",
			zap.String("user_id", conn.userID), zap.String("connection_id", conn.id))
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Websocket read error",
					zap.String("connection_id", conn.id), zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards queued events to the socket and keeps it alive
// with pings.
func (h *Hub) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Verify interface compliance
var _ port.NotificationGateway = (*Hub)(nil)
