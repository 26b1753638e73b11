package events_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"trustline/backend/internal/events"
	"trustline/backend/internal/models"
	"trustline/backend/internal/worker"
)

// MockQueue is a testify mock of events.Queue.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

// recordingBroadcaster collects envelopes instead of writing to sockets.
type recordingBroadcaster struct {
	mu   sync.Mutex
	envs []models.Envelope
	err  error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, env models.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.envs = append(b.envs, env)
	return nil
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.envs))
	for _, e := range b.envs {
		out = append(out, e.Type)
	}
	return out
}

type fixedStats struct {
	stats models.Stats
	calls int
}

func (f *fixedStats) Snapshot(context.Context) models.Stats {
	f.calls++
	return f.stats
}

type panickingSink struct{}

func (panickingSink) Name() string                                { return "panics" }
func (panickingSink) Accepts(events.Kind) bool                    { return true }
func (panickingSink) Deliver(context.Context, events.Event) error { panic("boom") }

type rejectingDispatcher struct{}

func (rejectingDispatcher) SubmitDetached(string, worker.Task) error {
	return worker.ErrPoolClosed
}

var errQueueDown = errors.New("dial tcp: connection refused")

// blockingQueue holds every Enqueue until release is closed or ctx ends.
type blockingQueue struct {
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingQueue() *blockingQueue {
	return &blockingQueue{release: make(chan struct{})}
}

func (q *blockingQueue) Enqueue(ctx context.Context, _ string, _ []byte) error {
	q.calls.Add(1)
	select {
	case <-q.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// poolRecorder runs tasks inline and remembers which pool each went to.
type poolRecorder struct {
	mu    sync.Mutex
	pools []string
}

func (r *poolRecorder) SubmitDetached(pool string, task worker.Task) error {
	r.mu.Lock()
	r.pools = append(r.pools, pool)
	r.mu.Unlock()
	task(context.Background())
	return nil
}

// slowBroadcaster takes delay per envelope.
type slowBroadcaster struct {
	delay     time.Duration
	delivered atomic.Int32
}

func (b *slowBroadcaster) Broadcast(context.Context, models.Envelope) error {
	time.Sleep(b.delay)
	b.delivered.Add(1)
	return nil
}
