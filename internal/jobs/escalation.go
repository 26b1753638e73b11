// Package jobs runs the priority escalator as a River periodic job on
// postgres deployments, so that only one instance escalates per interval.
package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"trustline/backend/internal/complaint"
	"trustline/backend/internal/logger"
)

// Escalator is the part of complaint.Escalator the worker runs.
type Escalator interface {
	RunOnce(ctx context.Context) (complaint.EscalationResult, error)
}

// PriorityEscalationArgs triggers one escalation pass.
type PriorityEscalationArgs struct{}

func (PriorityEscalationArgs) Kind() string { return "priority_escalation" }

// InsertOpts keeps a single pending pass per queue; a failed pass is not
// retried because the next tick starts from a fresh read anyway.
func (PriorityEscalationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByQueue: true,
			ByArgs:  true,
		},
	}
}

type PriorityEscalationWorker struct {
	river.WorkerDefaults[PriorityEscalationArgs]
	escalator Escalator
}

func NewPriorityEscalationWorker(escalator Escalator) *PriorityEscalationWorker {
	return &PriorityEscalationWorker{escalator: escalator}
}

func (w *PriorityEscalationWorker) Work(ctx context.Context, _ *river.Job[PriorityEscalationArgs]) error {
	if w == nil || w.escalator == nil {
		return fmt.Errorf("priority escalation worker is not initialized")
	}

	res, err := w.escalator.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("priority escalation pass: %w", err)
	}

	logger.Info("Priority escalation job completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("promoted", res.Promoted),
	)
	return nil
}
