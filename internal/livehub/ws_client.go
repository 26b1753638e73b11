package livehub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trustline/backend/internal/config"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketClient is an Observer backed by a gorilla/websocket connection.
type WebSocketClient struct {
	sessionID string
	conn      *websocket.Conn
	hub       *Hub
	send      chan models.Envelope

	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient wraps conn with a fresh session id. bufferSize bounds the
// number of envelopes queued for a slow reader.
func NewWebSocketClient(conn *websocket.Conn, hub *Hub, bufferSize int) *WebSocketClient {
	if bufferSize <= 0 {
		bufferSize = config.DefaultDashboardSendBuffer
	}
	return &WebSocketClient{
		sessionID: uuid.NewString(),
		conn:      conn,
		hub:       hub,
		send:      make(chan models.Envelope, bufferSize),
	}
}

func (c *WebSocketClient) SessionID() string { return c.sessionID }

func (c *WebSocketClient) Send(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which then closes the socket.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Dashboard socket read failed",
					zap.String("session_id", c.sessionID),
					zap.Error(err),
				)
			}
			return
		}
		c.hub.HandleInbound(context.Background(), c, message)
	}
}

// writePump writes one envelope per text frame and pings on idle.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(env)
			if err != nil {
				logger.Error("Failed to encode dashboard envelope",
					zap.String("session_id", c.sessionID),
					zap.Error(err),
				)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
