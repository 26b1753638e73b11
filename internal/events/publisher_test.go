package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trustline/backend/internal/events"
	"trustline/backend/internal/localization"
	"trustline/backend/internal/models"
)

func newTexts(t *testing.T) *localization.Localizer {
	t.Helper()
	l, err := localization.NewDefault()
	require.NoError(t, err)
	return l
}

func sampleComplaint() models.Complaint {
	sub := "Garbage"
	return models.Complaint{
		ID:          12,
		Title:       "Overflowing bin",
		Category:    models.CategoryCivic,
		Subcategory: &sub,
		Status:      models.StatusPending,
		Priority:    models.PriorityLow,
		FiledBy:     "filer@example.com",
		CreatedAt:   time.Now(),
	}
}

func TestPublish_ComplaintCreated_ReachesBothSinksThenStats(t *testing.T) {
	queue := new(MockQueue)
	queue.On("Enqueue", mock.Anything, events.TopicComplaint, mock.Anything).Return(nil).Once()
	board := &recordingBroadcaster{}
	stats := &fixedStats{stats: models.Stats{Total: 1, Pending: 1}}

	pub := events.NewPublisher(events.Inline{}, stats,
		events.NewQueueSink(queue, newTexts(t), "en", time.Second),
		events.NewDashboardSink(board),
	)

	pub.Publish(events.ComplaintCreated{Complaint: sampleComplaint(), At: time.Now()})

	queue.AssertExpectations(t)
	assert.Equal(t, []string{models.EnvelopeNewComplaint, models.EnvelopeStatsUpdate}, board.types())
	assert.Equal(t, 1, stats.calls)
	assert.EqualValues(t, 1, board.envs[1].Stats.Total)
}

func TestPublish_NoObserversAndQueueDown_DoesNotFail(t *testing.T) {
	queue := new(MockQueue)
	queue.On("Enqueue", mock.Anything, events.TopicComplaintService, mock.Anything).Return(errQueueDown)
	board := &recordingBroadcaster{}

	pub := events.NewPublisher(events.Inline{}, &fixedStats{},
		events.NewQueueSink(queue, newTexts(t), "en", time.Second),
		events.NewDashboardSink(board),
	)

	assert.NotPanics(t, func() {
		pub.Publish(events.ComplaintStatusChanged{
			ComplaintID: 3, OldStatus: models.StatusPending, NewStatus: models.StatusResolved, At: time.Now(),
		})
	})
	queue.AssertNumberOfCalls(t, "Enqueue", 1)
	// The dashboard still gets the event and the stats follow-up.
	assert.Equal(t, []string{models.EnvelopeStatusUpdate, models.EnvelopeStatsUpdate}, board.types())
}

func TestPublish_OTPNeverReachesDashboard(t *testing.T) {
	queue := new(MockQueue)
	var payload []byte
	queue.On("Enqueue", mock.Anything, events.TopicOTP, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(2).([]byte) }).
		Return(nil)
	board := &recordingBroadcaster{}
	stats := &fixedStats{}

	pub := events.NewPublisher(events.Inline{}, stats,
		events.NewQueueSink(queue, newTexts(t), "en", time.Second),
		events.NewDashboardSink(board),
	)
	pub.Publish(events.OTPIssued{Email: "a@example.com", Code: "123456", TTL: 5 * time.Minute, At: time.Now()})

	assert.Empty(t, board.types())
	assert.Zero(t, stats.calls, "OTP issuance does not mutate stats")

	var rec events.Record
	require.NoError(t, json.Unmarshal(payload, &rec))
	assert.Equal(t, "a@example.com", rec.Email)
	assert.Contains(t, rec.Body, "123456")
	assert.Contains(t, rec.Body, "5 minutes")
}

func TestPublish_PanickingSinkIsIsolated(t *testing.T) {
	board := &recordingBroadcaster{}
	pub := events.NewPublisher(events.Inline{}, nil, panickingSink{}, events.NewDashboardSink(board))

	assert.NotPanics(t, func() {
		pub.Publish(events.UserRegistered{User: models.User{Email: "u@example.com"}, At: time.Now()})
	})
	assert.Equal(t, []string{models.EnvelopeNewUser}, board.types())
}

func TestPublish_DispatcherRejects(t *testing.T) {
	board := &recordingBroadcaster{}
	pub := events.NewPublisher(rejectingDispatcher{}, &fixedStats{}, events.NewDashboardSink(board))

	assert.NotPanics(t, func() {
		pub.Publish(events.ComplaintCreated{Complaint: sampleComplaint(), At: time.Now()})
	})
	assert.Empty(t, board.types())
}

func TestPublish_BroadcastFailureIsSwallowed(t *testing.T) {
	board := &recordingBroadcaster{err: errQueueDown}
	pub := events.NewPublisher(events.Inline{}, &fixedStats{}, events.NewDashboardSink(board))

	assert.NotPanics(t, func() {
		pub.Publish(events.ComplaintCreated{Complaint: sampleComplaint(), At: time.Now()})
	})
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "complaint", events.TopicFor(events.KindComplaintCreated))
	assert.Equal(t, "ComplaintService", events.TopicFor(events.KindComplaintStatusChanged))
	assert.Equal(t, "Users", events.TopicFor(events.KindUserRegistered))
	assert.Equal(t, "otp", events.TopicFor(events.KindOTPIssued))
	assert.Empty(t, events.TopicFor(events.KindStatsChanged))
}

func TestQueueSink_RenderStatusChanged(t *testing.T) {
	sink := events.NewQueueSink(new(MockQueue), newTexts(t), "", time.Second)
	at := time.UnixMilli(1_700_000_000_000)

	rec, err := sink.Render(events.ComplaintStatusChanged{
		ComplaintID: 9,
		Title:       "Pothole",
		FiledBy:     "filer@example.com",
		OldStatus:   models.StatusPending,
		NewStatus:   models.StatusResolved,
		Message:     "Filled.",
		At:          at,
	})
	require.NoError(t, err)

	assert.Equal(t, "filer@example.com", rec.Email)
	assert.Equal(t, "Complaint #9 is now RESOLVED", rec.Subject)
	assert.Contains(t, rec.Body, "from PENDING to RESOLVED")
	assert.Equal(t, int64(1_700_000_000_000), rec.Timestamp)
}

func TestToEnvelope(t *testing.T) {
	at := time.UnixMilli(42)

	env, err := events.ToEnvelope(events.ComplaintStatusChanged{ComplaintID: 5, OldStatus: models.StatusPending, NewStatus: models.StatusInProgress, At: at})
	require.NoError(t, err)
	assert.Equal(t, models.EnvelopeStatusUpdate, env.Type)
	assert.Equal(t, int64(42), env.Timestamp)
	assert.Equal(t, uint(5), env.ComplaintID)
	assert.Equal(t, models.StatusInProgress, env.Status)

	env, err = events.ToEnvelope(events.ComplaintCreated{Complaint: sampleComplaint(), At: at})
	require.NoError(t, err)
	assert.Equal(t, models.EnvelopeNewComplaint, env.Type)
	assert.Equal(t, "Garbage", env.Complaint["subcategory"])

	_, err = events.ToEnvelope(events.OTPIssued{At: at})
	assert.Error(t, err)
}
