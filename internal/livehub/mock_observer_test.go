package livehub_test

import (
	"context"
	"sync"

	"trustline/backend/internal/models"
)

type MockObserver struct {
	id string

	mu       sync.Mutex
	received []models.Envelope
	capacity int
	closed   int

	// onSend runs before each envelope is queued.
	onSend func(env models.Envelope)
}

func newMockObserver(id string) *MockObserver {
	return &MockObserver{id: id, capacity: 100}
}

func (o *MockObserver) SessionID() string { return o.id }

func (o *MockObserver) Send(env models.Envelope) bool {
	if o.onSend != nil {
		o.onSend(env)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed > 0 || len(o.received) >= o.capacity {
		return false
	}
	o.received = append(o.received, env)
	return true
}

func (o *MockObserver) Run() {}

func (o *MockObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

func (o *MockObserver) Received() []models.Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.Envelope(nil), o.received...)
}

func (o *MockObserver) Types() []string {
	var types []string
	for _, env := range o.Received() {
		types = append(types, env.Type)
	}
	return types
}

func (o *MockObserver) CloseCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type fixedStats struct {
	stats models.Stats
}

func (f fixedStats) Snapshot(context.Context) models.Stats { return f.stats }
