package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trustline/backend/internal/complaint"
)

type MockEscalator struct {
	mock.Mock
}

func (m *MockEscalator) RunOnce(ctx context.Context) (complaint.EscalationResult, error) {
	args := m.Called()
	return args.Get(0).(complaint.EscalationResult), args.Error(1)
}

func TestPriorityEscalationArgs(t *testing.T) {
	assert.Equal(t, "priority_escalation", PriorityEscalationArgs{}.Kind())

	opts := PriorityEscalationArgs{}.InsertOpts()
	assert.Equal(t, river.QueueDefault, opts.Queue)
	assert.Equal(t, 1, opts.MaxAttempts)
	assert.True(t, opts.UniqueOpts.ByQueue)
	assert.True(t, opts.UniqueOpts.ByArgs)
}

func TestPriorityEscalationWorker_Work(t *testing.T) {
	esc := new(MockEscalator)
	esc.On("RunOnce").Return(complaint.EscalationResult{Scanned: 3, Promoted: 1}, nil).Once()

	w := NewPriorityEscalationWorker(esc)
	require.NoError(t, w.Work(context.Background(), &river.Job[PriorityEscalationArgs]{}))
	esc.AssertExpectations(t)
}

func TestPriorityEscalationWorker_WorkFailure(t *testing.T) {
	esc := new(MockEscalator)
	esc.On("RunOnce").Return(complaint.EscalationResult{}, errors.New("db down"))

	w := NewPriorityEscalationWorker(esc)
	err := w.Work(context.Background(), &river.Job[PriorityEscalationArgs]{})
	assert.ErrorContains(t, err, "db down")
}

func TestPriorityEscalationWorker_Uninitialized(t *testing.T) {
	var nilWorker *PriorityEscalationWorker
	assert.ErrorContains(t, nilWorker.Work(context.Background(), nil), "not initialized")
	assert.ErrorContains(t, (&PriorityEscalationWorker{}).Work(context.Background(), nil), "not initialized")
}

func TestEscalationPeriodicJob(t *testing.T) {
	assert.NotNil(t, EscalationPeriodicJob(time.Hour))
}
