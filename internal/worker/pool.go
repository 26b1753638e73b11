// Package worker provides goroutine pool management.
//
// Background work (event fanout, stats recomputation) goes through these
// pools instead of naked goroutines so it is bounded and drains on shutdown.
// Each event sink gets its own pool, so one stalled sink can only exhaust its
// own capacity.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"trustline/backend/internal/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// PoolGeneral runs work that is not tied to one sink.
const PoolGeneral = "general"

const (
	sinkPoolPrefix  = "sink:"
	shutdownTimeout = 30 * time.Second
)

// SinkPool names the dedicated pool of an event sink.
func SinkPool(sink string) string {
	return sinkPoolPrefix + sink
}

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps an ants.Pool.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	General *Pool

	mu     sync.Mutex
	sinks  map[string]*Pool
	closed bool
	cfg    PoolConfig

	// serviceCtx outlives requests and the process signal; only Shutdown
	// cancels it, after running tasks have drained.
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	// FanoutPoolSize is the capacity of each per-sink pool.
	FanoutPoolSize  int
	GeneralPoolSize int
	// Nonblocking makes submission fail fast with ants.ErrPoolOverload instead
	// of waiting for a free worker.
	Nonblocking bool
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		FanoutPoolSize:  64,
		GeneralPoolSize: 32,
		Nonblocking:     true,
	}
}

func panicHandler(p interface{}) {
	logger.Error("Worker panic recovered",
		zap.Any("panic", p),
		zap.Stack("stack"),
	)
}

// NewPools creates the worker pool collection. Cancelling ctx does not stop
// the pools; call Shutdown.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		return nil, err
	}

	serviceCtx, serviceCancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Pools{
		General:       &Pool{pool: generalAnts, name: PoolGeneral},
		sinks:         make(map[string]*Pool),
		cfg:           cfg,
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// pool resolves name, creating a sink pool on first use.
func (p *Pools) pool(name string) (*Pool, error) {
	if name == PoolGeneral {
		return p.General, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	if pl, ok := p.sinks[name]; ok {
		return pl, nil
	}
	a, err := ants.NewPool(p.cfg.FanoutPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(p.cfg.Nonblocking),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	pl := &Pool{pool: a, name: name}
	p.sinks[name] = pl
	return pl, nil
}

// SubmitDetached submits a task that runs on the service lifecycle context
// rather than a request context, so it survives the request returning.
// Tasks accepted before Shutdown run to completion.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	pl, err := p.pool(poolName)
	if err != nil {
		return err
	}

	err = pl.pool.Submit(func() {
		task(p.serviceCtx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Shutdown stops accepting work, waits for running tasks, then cancels the
// service context so anything still blocked after the timeout unwinds.
func (p *Pools) Shutdown() {
	p.mu.Lock()
	p.closed = true
	all := make([]*Pool, 0, len(p.sinks)+1)
	for _, pl := range p.sinks {
		all = append(all, pl)
	}
	p.mu.Unlock()
	all = append(all, p.General)

	deadline := time.Now().Add(shutdownTimeout)
	for _, pl := range all {
		if err := pl.pool.ReleaseTimeout(time.Until(deadline)); err != nil {
			logger.Warn("Worker pool shutdown timeout", zap.String("pool", pl.name), zap.Error(err))
		}
	}
	p.serviceCancel()
}

// Metrics returns per-pool running/free/cap counts.
func (p *Pools) Metrics() map[string]interface{} {
	p.mu.Lock()
	all := make([]*Pool, 0, len(p.sinks)+1)
	for _, pl := range p.sinks {
		all = append(all, pl)
	}
	p.mu.Unlock()
	all = append(all, p.General)

	out := make(map[string]interface{}, len(all))
	for _, pl := range all {
		out[pl.name] = map[string]int{
			"running": pl.pool.Running(),
			"free":    pl.pool.Free(),
			"cap":     pl.pool.Cap(),
		}
	}
	return out
}
