package events

import (
	"context"
	"fmt"

	"trustline/backend/internal/models"
)

// Broadcaster pushes an envelope to every connected dashboard observer.
// livehub.Hub and livehub.RedisRelay satisfy it.
type Broadcaster interface {
	Broadcast(ctx context.Context, env models.Envelope) error
}

// DashboardSink converts events to envelopes for the live dashboard.
type DashboardSink struct {
	out Broadcaster
}

func NewDashboardSink(out Broadcaster) *DashboardSink {
	return &DashboardSink{out: out}
}

func (s *DashboardSink) Name() string { return "dashboard" }

// Accepts everything except OTPIssued; codes never reach the dashboard.
func (s *DashboardSink) Accepts(kind Kind) bool {
	switch kind {
	case KindComplaintCreated, KindComplaintStatusChanged, KindUserRegistered, KindStatsChanged:
		return true
	default:
		return false
	}
}

func (s *DashboardSink) Deliver(ctx context.Context, ev Event) error {
	env, err := ToEnvelope(ev)
	if err != nil {
		return err
	}
	return s.out.Broadcast(ctx, env)
}

// ToEnvelope renders ev as a dashboard envelope.
func ToEnvelope(ev Event) (models.Envelope, error) {
	switch e := ev.(type) {
	case ComplaintCreated:
		env := models.NewEnvelope(models.EnvelopeNewComplaint, e.At)
		env.Complaint = e.Complaint.Snapshot()
		return env, nil
	case ComplaintStatusChanged:
		env := models.NewEnvelope(models.EnvelopeStatusUpdate, e.At)
		env.ComplaintID = e.ComplaintID
		env.OldStatus = e.OldStatus
		env.Status = e.NewStatus
		env.Message = e.Message
		return env, nil
	case UserRegistered:
		env := models.NewEnvelope(models.EnvelopeNewUser, e.At)
		env.User = e.User.Snapshot()
		return env, nil
	case StatsChanged:
		env := models.NewEnvelope(models.EnvelopeStatsUpdate, e.At)
		stats := e.Stats
		env.Stats = &stats
		return env, nil
	default:
		return models.Envelope{}, fmt.Errorf("no dashboard envelope for %s", ev.Kind())
	}
}
