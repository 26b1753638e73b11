package complaint

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trustline/backend/internal/config"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
	"trustline/backend/internal/storage"
)

// EscalationStore is the part of the store adapter the escalator uses.
type EscalationStore interface {
	ListForEscalation(ctx context.Context, includeClosed bool) ([]models.Complaint, error)
	UpdatePriorities(ctx context.Context, changes []storage.PriorityChange) (int, error)
}

// Thresholds are the complaint ages at which priority is raised.
type Thresholds struct {
	MediumAfter time.Duration
	HighAfter   time.Duration
}

// DefaultThresholds is 48h → MEDIUM and 120h → HIGH.
var DefaultThresholds = Thresholds{
	MediumAfter: config.DefaultMediumAfter,
	HighAfter:   config.DefaultHighAfter,
}

// NextPriority returns the priority a complaint of the given age should have.
// It never returns a lower priority than current.
func NextPriority(current models.Priority, age time.Duration, th Thresholds) models.Priority {
	target := models.PriorityLow
	switch {
	case age >= th.HighAfter:
		target = models.PriorityHigh
	case age >= th.MediumAfter:
		target = models.PriorityMedium
	}
	if target.Rank() > current.Rank() {
		return target
	}
	return current
}

// EscalationResult summarises one pass.
type EscalationResult struct {
	Scanned  int `json:"scanned"`
	Promoted int `json:"promoted"`
}

// Escalator periodically raises the priority of ageing complaints.
type Escalator struct {
	store         EscalationStore
	thresholds    Thresholds
	includeClosed bool
	interval      time.Duration
	clock         func() time.Time
}

// EscalatorOptions configures an Escalator. Zero values fall back to defaults.
type EscalatorOptions struct {
	Thresholds    Thresholds
	IncludeClosed bool
	Interval      time.Duration
	Clock         func() time.Time
}

func NewEscalator(store EscalationStore, opts EscalatorOptions) *Escalator {
	e := &Escalator{
		store:         store,
		thresholds:    opts.Thresholds,
		includeClosed: opts.IncludeClosed,
		interval:      opts.Interval,
		clock:         opts.Clock,
	}
	if e.thresholds == (Thresholds{}) {
		e.thresholds = DefaultThresholds
	}
	if e.interval <= 0 {
		e.interval = config.DefaultEscalationInterval
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// RunOnce reads the complaints, computes new priorities in memory and writes
// the promotions as one batch. Running it twice in a row promotes nothing the
// second time.
func (e *Escalator) RunOnce(ctx context.Context) (EscalationResult, error) {
	complaints, err := e.store.ListForEscalation(ctx, e.includeClosed)
	if err != nil {
		return EscalationResult{}, err
	}

	now := e.clock()
	var changes []storage.PriorityChange
	for _, c := range complaints {
		next := NextPriority(c.Priority, now.Sub(c.CreatedAt), e.thresholds)
		if next != c.Priority {
			changes = append(changes, storage.PriorityChange{ID: c.ID, From: c.Priority, To: next})
		}
	}

	promoted, err := e.store.UpdatePriorities(ctx, changes)
	if err != nil {
		return EscalationResult{Scanned: len(complaints)}, err
	}
	return EscalationResult{Scanned: len(complaints), Promoted: promoted}, nil
}

// Run ticks every interval until ctx is done. A failed pass is logged and the
// next tick starts from a fresh read.
func (e *Escalator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	logger.Info("Priority escalator started", zap.Duration("interval", e.interval))
	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Priority escalator stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Escalator) tick(ctx context.Context) {
	res, err := e.RunOnce(ctx)
	if err != nil {
		logger.Error("Priority escalation pass failed", zap.Error(err))
		return
	}
	logger.Info("Priority escalation pass completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("promoted", res.Promoted),
	)
}
