package complaint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trustline/backend/internal/models"
	"trustline/backend/internal/storage"
)

func TestNextPriority(t *testing.T) {
	tests := []struct {
		name    string
		current models.Priority
		age     time.Duration
		want    models.Priority
	}{
		{"fresh", models.PriorityLow, time.Hour, models.PriorityLow},
		{"just under medium", models.PriorityLow, 48*time.Hour - time.Second, models.PriorityLow},
		{"medium boundary", models.PriorityLow, 48 * time.Hour, models.PriorityMedium},
		{"already medium", models.PriorityMedium, 60 * time.Hour, models.PriorityMedium},
		{"high boundary", models.PriorityLow, 120 * time.Hour, models.PriorityHigh},
		{"medium to high", models.PriorityMedium, 200 * time.Hour, models.PriorityHigh},
		{"never lowered", models.PriorityHigh, time.Hour, models.PriorityHigh},
		{"medium kept when young", models.PriorityMedium, time.Hour, models.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextPriority(tt.current, tt.age, DefaultThresholds))
		})
	}
}

func TestEscalator_RunOnce_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	ages := []time.Duration{time.Hour, 50 * time.Hour, 130 * time.Hour, 200 * time.Hour}
	statuses := []models.Status{models.StatusPending, models.StatusInProgress, models.StatusResolved, models.StatusPending}
	ids := make([]uint, len(ages))
	for i, age := range ages {
		created := now.Add(-age)
		c := &models.Complaint{
			Title: "t", Description: "d", Category: models.CategoryOther,
			Status: statuses[i], Priority: models.PriorityLow, FiledBy: filer,
			CreatedAt: created, UpdatedAt: created,
		}
		if i == 3 {
			c.Priority = models.PriorityHigh
		}
		require.NoError(t, store.CreateComplaint(ctx, c))
		ids[i] = c.ID
	}

	esc := NewEscalator(store, EscalatorOptions{IncludeClosed: true, Clock: func() time.Time { return now }})

	first, err := esc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, EscalationResult{Scanned: 4, Promoted: 2}, first)

	second, err := esc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, EscalationResult{Scanned: 4, Promoted: 0}, second)

	want := []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityHigh}
	for i, id := range ids {
		c, err := store.GetComplaint(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want[i], c.Priority, "complaint %d", i)
	}
}

func TestEscalator_ExcludeClosed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	created := now.Add(-130 * time.Hour)

	c := &models.Complaint{
		Title: "t", Description: "d", Category: models.CategoryOther,
		Status: models.StatusRejected, Priority: models.PriorityLow, FiledBy: filer,
		CreatedAt: created, UpdatedAt: created,
	}
	require.NoError(t, store.CreateComplaint(ctx, c))

	esc := NewEscalator(store, EscalatorOptions{IncludeClosed: false, Clock: func() time.Time { return now }})
	res, err := esc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, EscalationResult{}, res)
}

type MockEscalationStore struct {
	mock.Mock
}

func (m *MockEscalationStore) ListForEscalation(ctx context.Context, includeClosed bool) ([]models.Complaint, error) {
	args := m.Called(includeClosed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Complaint), args.Error(1)
}

func (m *MockEscalationStore) UpdatePriorities(ctx context.Context, changes []storage.PriorityChange) (int, error) {
	args := m.Called(changes)
	return args.Int(0), args.Error(1)
}

func TestEscalator_WriteFailureIsReported(t *testing.T) {
	now := time.Now()
	store := new(MockEscalationStore)
	store.On("ListForEscalation", true).Return([]models.Complaint{
		{ID: 1, Priority: models.PriorityLow, CreatedAt: now.Add(-72 * time.Hour)},
	}, nil)
	store.On("UpdatePriorities", []storage.PriorityChange{{ID: 1, From: models.PriorityLow, To: models.PriorityMedium}}).
		Return(0, errors.New("connection reset"))

	esc := NewEscalator(store, EscalatorOptions{IncludeClosed: true, Clock: func() time.Time { return now }})
	res, err := esc.RunOnce(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, res.Scanned)
	store.AssertExpectations(t)
}

func TestEscalator_RunStopsOnCancel(t *testing.T) {
	store := new(MockEscalationStore)
	store.On("ListForEscalation", true).Return(nil, errors.New("db down"))

	esc := NewEscalator(store, EscalatorOptions{IncludeClosed: true, Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		esc.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("escalator did not stop")
	}
	// A failing tick does not stop the loop.
	assert.GreaterOrEqual(t, len(store.Calls), 2)
}
