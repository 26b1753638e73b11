package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"trustline/backend/internal/localization"
	"trustline/backend/internal/models"
)

// Queue topics consumed by the notification sender.
const (
	TopicUsers            = "Users"
	TopicOTP              = "otp"
	TopicComplaint        = "complaint"
	TopicComplaintService = "ComplaintService"
)

// TopicFor returns the queue topic of an event kind, or "" when the kind is
// not queued.
func TopicFor(kind Kind) string {
	switch kind {
	case KindComplaintCreated:
		return TopicComplaint
	case KindComplaintStatusChanged:
		return TopicComplaintService
	case KindUserRegistered:
		return TopicUsers
	case KindOTPIssued:
		return TopicOTP
	default:
		return ""
	}
}

// Queue is the outbound message queue. *storage.Service satisfies it.
type Queue interface {
	Enqueue(ctx context.Context, topic string, payload []byte) error
}

// Record is the compact form written to the queue.
type Record struct {
	Kind        Kind          `json:"kind"`
	Email       string        `json:"email,omitempty"`
	Username    string        `json:"username,omitempty"`
	Subject     string        `json:"subject"`
	Body        string        `json:"body"`
	ComplaintID uint          `json:"complaintId,omitempty"`
	Title       string        `json:"title,omitempty"`
	Category    string        `json:"category,omitempty"`
	OldStatus   models.Status `json:"oldStatus,omitempty"`
	Status      models.Status `json:"status,omitempty"`
	Timestamp   int64         `json:"timestamp"`
}

// QueueSink enqueues a Record per event on the kind's topic.
type QueueSink struct {
	queue   Queue
	texts   *localization.Localizer
	lang    string
	timeout time.Duration
}

// NewQueueSink creates the sink. Each enqueue is bounded by timeout.
func NewQueueSink(queue Queue, texts *localization.Localizer, lang string, timeout time.Duration) *QueueSink {
	if lang == "" {
		lang = localization.DefaultLang
	}
	return &QueueSink{queue: queue, texts: texts, lang: lang, timeout: timeout}
}

func (s *QueueSink) Name() string { return "queue" }

func (s *QueueSink) Accepts(kind Kind) bool { return TopicFor(kind) != "" }

func (s *QueueSink) Deliver(ctx context.Context, ev Event) error {
	topic := TopicFor(ev.Kind())
	if topic == "" {
		return nil
	}

	record, err := s.Render(ev)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", ev.Kind(), err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.queue.Enqueue(ctx, topic, payload)
}

// Render builds the queued record for ev.
func (s *QueueSink) Render(ev Event) (Record, error) {
	r := Record{Kind: ev.Kind(), Timestamp: ev.OccurredAt().UnixMilli()}

	switch e := ev.(type) {
	case ComplaintCreated:
		c := e.Complaint
		args := map[string]string{
			"id":       strconv.FormatUint(uint64(c.ID), 10),
			"title":    c.Title,
			"category": c.Category,
		}
		r.Email = c.FiledBy
		r.ComplaintID = c.ID
		r.Title = c.Title
		r.Category = c.Category
		r.Status = c.Status
		r.Subject = s.texts.Format(s.lang, localization.KeyComplaintCreatedSubject, args)
		r.Body = s.texts.Format(s.lang, localization.KeyComplaintCreatedBody, args)
	case ComplaintStatusChanged:
		args := map[string]string{
			"id":         strconv.FormatUint(uint64(e.ComplaintID), 10),
			"title":      e.Title,
			"old_status": string(e.OldStatus),
			"status":     string(e.NewStatus),
			"message":    e.Message,
		}
		r.Email = e.FiledBy
		r.ComplaintID = e.ComplaintID
		r.Title = e.Title
		r.OldStatus = e.OldStatus
		r.Status = e.NewStatus
		r.Subject = s.texts.Format(s.lang, localization.KeyStatusChangedSubject, args)
		r.Body = s.texts.Format(s.lang, localization.KeyStatusChangedBody, args)
	case UserRegistered:
		args := map[string]string{"name": e.User.Name}
		r.Email = e.User.Email
		r.Username = e.User.Name
		r.Subject = s.texts.Format(s.lang, localization.KeyUserRegisteredSubject, args)
		r.Body = s.texts.Format(s.lang, localization.KeyUserRegisteredBody, args)
	case OTPIssued:
		args := map[string]string{
			"code":    e.Code,
			"minutes": strconv.Itoa(int(e.TTL.Minutes())),
		}
		r.Email = e.Email
		r.Username = e.Name
		r.Subject = s.texts.Format(s.lang, localization.KeyOTPSubject, args)
		r.Body = s.texts.Format(s.lang, localization.KeyOTPBody, args)
	default:
		return Record{}, fmt.Errorf("queue sink cannot render %s", ev.Kind())
	}
	return r, nil
}
