package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"trustline/backend/internal/config"
	"trustline/backend/internal/logger"
)

const defaultMaxWorkers = 2

// Migrate creates or upgrades River's queue tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	if len(res.Versions) > 0 {
		logger.Info("River migration completed", zap.Int("versions_applied", len(res.Versions)))
	} else {
		logger.Info("River migration: already up-to-date")
	}
	return nil
}

// NewClient builds a River client that runs the escalation worker every
// interval, starting with a pass at startup.
func NewClient(pool *pgxpool.Pool, escalator Escalator, interval time.Duration, cfg config.RiverConfig) (*river.Client[pgx.Tx], error) {
	if interval <= 0 {
		interval = config.DefaultEscalationInterval
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, NewPriorityEscalationWorker(escalator)); err != nil {
		return nil, fmt.Errorf("register escalation worker: %w", err)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{EscalationPeriodicJob(interval)},
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}

	logger.Info("River client initialized",
		zap.Int("max_workers", maxWorkers),
		zap.Duration("escalation_interval", interval),
	)
	return client, nil
}

// EscalationPeriodicJob schedules PriorityEscalationArgs every interval.
func EscalationPeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return PriorityEscalationArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
