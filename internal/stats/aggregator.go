// Package stats computes the dashboard's aggregate counters.
package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
)

// Source is the subset of the store the aggregator reads.
type Source interface {
	CountComplaints(ctx context.Context, status models.Status) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error)
	AverageResolution(ctx context.Context) (time.Duration, error)
}

// Aggregator builds snapshots. Every sub-query is independent: one failing
// leaves its field at zero and the rest of the snapshot intact.
type Aggregator struct {
	source Source
	now    func() time.Time
}

func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

// WithClock overrides the time source.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Snapshot never fails.
func (a *Aggregator) Snapshot(ctx context.Context) models.Stats {
	now := a.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	s := models.Stats{LastUpdated: now.UnixMilli()}

	s.Total = a.count(ctx, "total", func(ctx context.Context) (int64, error) {
		return a.source.CountComplaints(ctx, "")
	})
	s.Pending = a.countStatus(ctx, models.StatusPending)
	s.InProgress = a.countStatus(ctx, models.StatusInProgress)
	s.Resolved = a.countStatus(ctx, models.StatusResolved)
	s.Rejected = a.countStatus(ctx, models.StatusRejected)
	s.Users = a.count(ctx, "users", a.source.CountUsers)
	s.ActiveToday = a.count(ctx, "active_today", func(ctx context.Context) (int64, error) {
		return a.source.CountUsersActiveSince(ctx, midnight)
	})

	avg, err := a.source.AverageResolution(ctx)
	if err != nil {
		degraded("avg_resolution_time", err)
	} else {
		s.AvgResolutionHours = avg.Hours()
	}

	return s
}

func (a *Aggregator) countStatus(ctx context.Context, status models.Status) int64 {
	return a.count(ctx, string(status), func(ctx context.Context) (int64, error) {
		return a.source.CountComplaints(ctx, status)
	})
}

func (a *Aggregator) count(ctx context.Context, field string, q func(context.Context) (int64, error)) int64 {
	n, err := q(ctx)
	if err != nil {
		degraded(field, err)
		return 0
	}
	return n
}

func degraded(field string, err error) {
	logger.Warn("Stats field degraded to zero",
		zap.String("field", field),
		zap.Error(err),
	)
}
