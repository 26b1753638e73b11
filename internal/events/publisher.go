package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
	"trustline/backend/internal/worker"
)

// Sink is a delivery target for domain events.
type Sink interface {
	Name() string
	Accepts(kind Kind) bool
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher runs tasks off the caller's goroutine. *worker.Pools satisfies it.
type Dispatcher interface {
	SubmitDetached(poolName string, task worker.Task) error
}

// StatsSource computes a snapshot. It must not fail.
type StatsSource interface {
	Snapshot(ctx context.Context) models.Stats
}

// Publisher fans events out to sinks. Each sink delivery is its own task; a
// failing sink is logged and never affects the others or the caller.
type Publisher struct {
	sinks      []Sink
	dispatcher Dispatcher
	stats      StatsSource
	now        func() time.Time
}

// NewPublisher creates a publisher. stats may be nil, which disables the
// StatsChanged follow-up.
func NewPublisher(dispatcher Dispatcher, stats StatsSource, sinks ...Sink) *Publisher {
	return &Publisher{
		sinks:      sinks,
		dispatcher: dispatcher,
		stats:      stats,
		now:        time.Now,
	}
}

// AddSink registers another sink. Not safe to call concurrently with Publish.
func (p *Publisher) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// Publish hands ev to every accepting sink and, for mutating events, schedules
// a stats recomputation for the sinks that accept StatsChanged. It returns
// immediately and never fails. Each sink is dispatched on its own pool, so a
// stalled sink only delays its own deliveries.
func (p *Publisher) Publish(ev Event) {
	for _, s := range p.sinks {
		if s.Accepts(ev.Kind()) {
			p.dispatch(s, ev)
		}
	}

	if ev.Mutating() && p.stats != nil && p.anyAccepts(KindStatsChanged) {
		p.submit(worker.PoolGeneral, "stats", ev.Kind(), func(ctx context.Context) {
			changed := StatsChanged{Stats: p.stats.Snapshot(ctx), At: p.now()}
			for _, s := range p.sinks {
				if s.Accepts(KindStatsChanged) {
					p.dispatch(s, changed)
				}
			}
		})
	}
}

func (p *Publisher) anyAccepts(kind Kind) bool {
	for _, s := range p.sinks {
		if s.Accepts(kind) {
			return true
		}
	}
	return false
}

func (p *Publisher) dispatch(s Sink, ev Event) {
	p.submit(worker.SinkPool(s.Name()), s.Name(), ev.Kind(), func(ctx context.Context) {
		deliver(ctx, s, ev)
	})
}

func (p *Publisher) submit(pool, name string, kind Kind, task worker.Task) {
	if err := p.dispatcher.SubmitDetached(pool, task); err != nil {
		logger.Warn("Event dropped: worker pool rejected task",
			zap.String("pool", pool),
			zap.String("sink", name),
			zap.String("event_kind", string(kind)),
			zap.Error(err),
		)
	}
}

// deliver isolates one sink call. Panics are converted to logged failures.
func deliver(ctx context.Context, s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Sink panicked",
				zap.String("sink", s.Name()),
				zap.String("event_kind", string(ev.Kind())),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := s.Deliver(ctx, ev); err != nil {
		logger.Warn("Sink delivery failed",
			zap.String("sink", s.Name()),
			zap.String("event_kind", string(ev.Kind())),
			zap.Error(err),
		)
	}
}

// Inline runs tasks on the calling goroutine with a background context.
// Used by the admin CLI and tests where nothing outlives the call.
type Inline struct{}

func (Inline) SubmitDetached(_ string, task worker.Task) error {
	task(context.Background())
	return nil
}
