package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trustline/backend/internal/events"
	"trustline/backend/internal/localization"
)

// Sender is the part of *tgbotapi.BotAPI used to post messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AlertSink posts new complaints and status changes to the admin chat.
type AlertSink struct {
	sender    Sender
	chatID    int64
	localizer *localization.Localizer
	lang      string
}

func NewAlertSink(sender Sender, chatID int64, localizer *localization.Localizer, lang string) *AlertSink {
	return &AlertSink{sender: sender, chatID: chatID, localizer: localizer, lang: lang}
}

func (s *AlertSink) Name() string { return "telegram" }

func (s *AlertSink) Accepts(kind events.Kind) bool {
	return kind == events.KindComplaintCreated || kind == events.KindComplaintStatusChanged
}

// Deliver sends one plain-text message. Telegram calls are not cancellable,
// so ctx is only checked before sending.
func (s *AlertSink) Deliver(ctx context.Context, ev events.Event) error {
	text, err := s.Render(ev)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.sender.Send(tgbotapi.NewMessage(s.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Render returns the alert text for ev.
func (s *AlertSink) Render(ev events.Event) (string, error) {
	switch e := ev.(type) {
	case events.ComplaintCreated:
		return s.localizer.Format(s.lang, localization.KeyAdminNewComplaint, map[string]string{
			"id":       strconv.FormatUint(uint64(e.Complaint.ID), 10),
			"category": e.Complaint.Category,
			"title":    e.Complaint.Title,
			"filed_by": e.Complaint.FiledBy,
		}), nil
	case events.ComplaintStatusChanged:
		text := s.localizer.Format(s.lang, localization.KeyAdminStatusChanged, map[string]string{
			"id":         strconv.FormatUint(uint64(e.ComplaintID), 10),
			"old_status": string(e.OldStatus),
			"status":     string(e.NewStatus),
		})
		if e.Message != "" {
			text += "\n" + e.Message
		}
		return text, nil
	default:
		return "", fmt.Errorf("telegram sink cannot render %s", ev.Kind())
	}
}
