// Package livehub is the live admin dashboard channel: the set of connected
// observers, their WebSocket pumps and an optional Redis relay that fans
// broadcasts out across instances.
package livehub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
)

const welcomeMessage = "Connected to Admin Dashboard WebSocket"

// StatsSource answers REQUEST_STATS.
type StatsSource interface {
	Snapshot(ctx context.Context) models.Stats
}

// Hub holds the connected observers. All methods are safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]Observer

	stats StatsSource
	now   func() time.Time
}

// NewHub creates an empty hub. stats may be nil, in which case REQUEST_STATS
// is answered with an empty snapshot.
func NewHub(stats StatsSource) *Hub {
	return &Hub{
		observers: make(map[string]Observer),
		stats:     stats,
		now:       time.Now,
	}
}

// Register queues the WELCOME envelope on o, then adds it to the hub, so
// WELCOME is always the first envelope an observer sees. An observer that
// refuses WELCOME is closed and never registered.
func (h *Hub) Register(o Observer) {
	welcome := models.NewEnvelope(models.EnvelopeWelcome, h.now())
	welcome.Message = welcomeMessage
	welcome.SessionID = o.SessionID()
	if !o.Send(welcome) {
		o.Close()
		logger.Warn("Dashboard observer refused welcome", zap.String("session_id", o.SessionID()))
		return
	}

	h.mu.Lock()
	h.observers[o.SessionID()] = o
	total := len(h.observers)
	h.mu.Unlock()

	logger.Info("Dashboard observer connected",
		zap.String("session_id", o.SessionID()),
		zap.Int("observers", total),
	)
}

// Unregister removes o and closes it. Unknown observers are ignored.
func (h *Hub) Unregister(o Observer) {
	h.mu.Lock()
	current, ok := h.observers[o.SessionID()]
	if ok && current == o {
		delete(h.observers, o.SessionID())
	}
	h.mu.Unlock()

	if ok && current == o {
		o.Close()
		logger.Info("Dashboard observer disconnected", zap.String("session_id", o.SessionID()))
	}
}

// Broadcast queues env on every observer and drops the ones that refuse it.
// It does not wait for socket writes and never fails.
func (h *Hub) Broadcast(_ context.Context, env models.Envelope) error {
	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	for _, o := range targets {
		if !o.Send(env) {
			logger.Debug("Dropping unresponsive dashboard observer",
				zap.String("session_id", o.SessionID()),
				zap.String("type", env.Type),
			)
			h.Unregister(o)
		}
	}
	return nil
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// HandleInbound processes one frame received from o.
func (h *Hub) HandleInbound(ctx context.Context, o Observer, raw []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Warn("Malformed dashboard message",
			zap.String("session_id", o.SessionID()),
			zap.Error(err),
		)
		return
	}

	switch msg.Type {
	case models.EnvelopePing:
		o.Send(models.NewEnvelope(models.EnvelopePong, h.now()))
	case models.EnvelopeRequestStats:
		var snapshot models.Stats
		if h.stats != nil {
			snapshot = h.stats.Snapshot(ctx)
		}
		resp := models.NewEnvelope(models.EnvelopeStatsResponse, h.now())
		resp.Stats = &snapshot
		o.Send(resp)
	default:
		logger.Info("Unknown dashboard message type",
			zap.String("session_id", o.SessionID()),
			zap.String("type", msg.Type),
		)
	}
}

// Shutdown closes every observer.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	observers := h.observers
	h.observers = make(map[string]Observer)
	h.mu.Unlock()

	for _, o := range observers {
		o.Close()
	}
}
