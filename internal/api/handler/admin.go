package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/backend/internal/complaint"
	"trustline/backend/internal/logger"
)

type transitionRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TransitionComplaint moves a complaint to a new status. Without a message
// the default "Status changed to <STATUS>" is recorded.
func (h *Handler) TransitionComplaint(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		badRequest(c, "INVALID_BODY", "status is required")
		return
	}
	status, err := complaint.ParseStatus(req.Status)
	if err != nil {
		fail(c, err)
		return
	}

	comp, err := h.Complaints.Transition(c.Request.Context(), id, status, req.Message, currentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comp)
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Stats.Snapshot(c.Request.Context()))
}

func (h *Handler) DashboardHealth(c *gin.Context) {
	resp := gin.H{"connections": h.Hub.Count()}
	if h.opts.Workers != nil {
		resp["workers"] = h.opts.Workers.Metrics()
	}
	c.JSON(http.StatusOK, resp)
}

// ListUsers returns registered accounts, newest first. ?limit caps the page.
func (h *Handler) ListUsers(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "INVALID_LIMIT", "limit must be an integer")
			return
		}
		limit = n
	}
	list, err := h.Users.List(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type logLevelRequest struct {
	Level string `json:"level"`
}

func (h *Handler) GetLogLevel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"level": logger.GetLevel().String()})
}

// SetLogLevel changes the global log level at runtime.
func (h *Handler) SetLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Level) == "" {
		badRequest(c, "INVALID_BODY", "level is required")
		return
	}
	if err := logger.SetLevel(strings.ToLower(strings.TrimSpace(req.Level))); err != nil {
		badRequest(c, "INVALID_LEVEL", "level must be one of debug, info, warn, error")
		return
	}
	logger.Info("Log level changed", zap.String("level", logger.GetLevel().String()), zap.String("by", currentActor(c).Email))
	c.JSON(http.StatusOK, gin.H{"level": logger.GetLevel().String()})
}
