package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"trustline/backend/internal/models"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) CountComplaints(ctx context.Context, status models.Status) (int64, error) {
	args := m.Called(status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSource) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSource) CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSource) AverageResolution(ctx context.Context) (time.Duration, error) {
	args := m.Called()
	return args.Get(0).(time.Duration), args.Error(1)
}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func healthySource() *MockSource {
	src := new(MockSource)
	src.On("CountComplaints", models.Status("")).Return(int64(10), nil)
	src.On("CountComplaints", models.StatusPending).Return(int64(4), nil)
	src.On("CountComplaints", models.StatusInProgress).Return(int64(3), nil)
	src.On("CountComplaints", models.StatusResolved).Return(int64(2), nil)
	src.On("CountComplaints", models.StatusRejected).Return(int64(1), nil)
	src.On("CountUsers").Return(int64(7), nil)
	src.On("CountUsersActiveSince", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)).Return(int64(2), nil)
	return src
}

func TestSnapshot(t *testing.T) {
	src := healthySource()
	src.On("AverageResolution").Return(90*time.Minute, nil)

	s := NewAggregator(src).WithClock(func() time.Time { return fixedNow }).Snapshot(context.Background())

	assert.Equal(t, models.Stats{
		Total:              10,
		Pending:            4,
		InProgress:         3,
		Resolved:           2,
		Rejected:           1,
		Users:              7,
		ActiveToday:        2,
		AvgResolutionHours: 1.5,
		LastUpdated:        fixedNow.UnixMilli(),
	}, s)
	src.AssertExpectations(t)
}

func TestSnapshot_AverageFailureDefaultsToZero(t *testing.T) {
	src := healthySource()
	src.On("AverageResolution").Return(time.Duration(0), errors.New("syntax error near DATEDIFF"))

	s := NewAggregator(src).WithClock(func() time.Time { return fixedNow }).Snapshot(context.Background())

	assert.Zero(t, s.AvgResolutionHours)
	assert.EqualValues(t, 10, s.Total, "other fields are unaffected")
	assert.EqualValues(t, 2, s.ActiveToday)
}

func TestSnapshot_EveryQueryFails(t *testing.T) {
	boom := errors.New("database is closed")
	src := new(MockSource)
	src.On("CountComplaints", mock.Anything).Return(int64(0), boom)
	src.On("CountUsers").Return(int64(0), boom)
	src.On("CountUsersActiveSince", mock.Anything).Return(int64(0), boom)
	src.On("AverageResolution").Return(time.Duration(0), boom)

	var s models.Stats
	assert.NotPanics(t, func() {
		s = NewAggregator(src).WithClock(func() time.Time { return fixedNow }).Snapshot(context.Background())
	})
	assert.Equal(t, models.Stats{LastUpdated: fixedNow.UnixMilli()}, s)
}
