// Package handler exposes the complaint, user and dashboard operations over
// HTTP and WebSocket.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/backend/internal/complaint"
	"trustline/backend/internal/livehub"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
	"trustline/backend/internal/users"
)

// StatsSource supplies the admin stats endpoint.
type StatsSource interface {
	Snapshot(ctx context.Context) models.Stats
}

// PoolMetrics reports worker pool utilisation.
type PoolMetrics interface {
	Metrics() map[string]interface{}
}

// Options carries the HTTP-only settings.
type Options struct {
	JWTSecret      []byte
	Issuer         string
	UploadsDir     string
	AllowedOrigins []string
	SendBuffer     int

	// Ping checks the broker for /health. Nil skips the check.
	Ping    func(ctx context.Context) error
	Workers PoolMetrics
}

type Handler struct {
	Complaints *complaint.Service
	Users      *users.Service
	Stats      StatsSource
	Hub        *livehub.Hub
	opts       Options
}

func NewHandler(complaints *complaint.Service, us *users.Service, stats StatsSource, hub *livehub.Hub, opts Options) *Handler {
	return &Handler{
		Complaints: complaints,
		Users:      us,
		Stats:      stats,
		Hub:        hub,
		opts:       opts,
	}
}

const healthTimeout = 2 * time.Second

// Health reports liveness plus broker reachability.
func (h *Handler) Health(c *gin.Context) {
	if h.opts.Ping == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.opts.Ping(ctx); err != nil {
		logger.Warn("Health check: redis unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": "up"})
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(ErrorHandler())

	r.GET("/health", h.Health)
	if h.opts.UploadsDir != "" {
		r.Static("/uploads", h.opts.UploadsDir)
	}

	api := r.Group("/api")

	public := api.Group("/users")
	public.POST("/register", h.Register)
	public.POST("/otp", h.RequestOTP)
	public.POST("/otp/verify", h.VerifyOTP)

	authed := api.Group("", AuthMiddleware(h.opts.JWTSecret, h.opts.Issuer))
	authed.POST("/complaints", h.FileComplaint)
	authed.GET("/complaints/mine", h.MyComplaints)
	authed.GET("/complaints/civic", h.CivicComplaints)
	authed.POST("/complaints/suggest-category", h.SuggestCategory)
	authed.GET("/complaints/:id", h.GetComplaint)
	authed.GET("/complaints/:id/updates", h.ComplaintUpdates)
	authed.POST("/complaints/:id/updates", h.AddUpdate)

	admin := authed.Group("/admin", RequireAdmin())
	admin.GET("/complaints", h.FindComplaints)
	admin.POST("/complaints/:id/status", h.TransitionComplaint)
	admin.GET("/stats", h.GetStats)
	admin.GET("/ws/health", h.DashboardHealth)
	admin.GET("/users", h.ListUsers)
	admin.GET("/log/level", h.GetLogLevel)
	admin.PUT("/log/level", h.SetLogLevel)

	r.GET("/ws/admin", h.ServeWebSocket)
}
