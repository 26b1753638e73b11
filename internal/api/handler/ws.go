package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trustline/backend/internal/livehub"
	"trustline/backend/internal/logger"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(h.opts.AllowedOrigins))
	for _, o := range h.opts.AllowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[strings.TrimRight(origin, "/")]
			return ok
		},
	}
}

// ServeWebSocket upgrades an admin to the live dashboard channel. Browsers
// cannot set headers on a WebSocket handshake, so the token may also be passed
// as ?token=.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	raw, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		raw = c.Query("token")
	}
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "authorization token missing"})
		return
	}
	actor, err := actorFromToken(raw, h.opts.JWTSecret, h.opts.Issuer)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
		return
	}
	if !actor.Privileged() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "ADMIN_REQUIRED", "message": "administrator role required"})
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Dashboard upgrade failed", zap.String("email", actor.Email), zap.Error(err))
		return
	}

	client := livehub.NewWebSocketClient(conn, h.Hub, h.opts.SendBuffer)
	h.Hub.Register(client)
	client.Run()
}
