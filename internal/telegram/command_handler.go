package telegram

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
)

// StatsSource answers /stats.
type StatsSource interface {
	Snapshot(ctx context.Context) models.Stats
}

// ComplaintLookup answers /complaint <id>.
type ComplaintLookup interface {
	GetComplaint(ctx context.Context, id uint) (*models.Complaint, error)
}

// CommandHandler answers the read-only admin commands. Messages from any chat
// other than the admin chat are ignored.
type CommandHandler struct {
	sender     Sender
	adminChat  int64
	stats      StatsSource
	complaints ComplaintLookup
}

func NewCommandHandler(sender Sender, adminChat int64, stats StatsSource, complaints ComplaintLookup) *CommandHandler {
	return &CommandHandler{sender: sender, adminChat: adminChat, stats: stats, complaints: complaints}
}

// Handle processes /stats and /complaint. It reports whether a reply was sent.
func (h *CommandHandler) Handle(ctx context.Context, update *tgbotapi.Update) bool {
	if update.Message == nil || !update.Message.IsCommand() {
		return false
	}
	if update.Message.Chat.ID != h.adminChat {
		return false
	}

	var text string
	switch update.Message.Command() {
	case "stats":
		text = formatStats(h.stats.Snapshot(ctx))
	case "complaint":
		text = h.describeComplaint(ctx, update.Message.CommandArguments())
	default:
		return false
	}

	if _, err := h.sender.Send(tgbotapi.NewMessage(h.adminChat, text)); err != nil {
		logger.Warn("Failed to answer telegram command",
			zap.String("command", update.Message.Command()),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (h *CommandHandler) describeComplaint(ctx context.Context, arg string) string {
	id, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil || id == 0 {
		return "Usage: /complaint <id>"
	}
	c, err := h.complaints.GetComplaint(ctx, uint(id))
	if err != nil {
		return "Complaint #" + strconv.FormatUint(id, 10) + " not found"
	}

	var b strings.Builder
	b.WriteString("Complaint #" + strconv.FormatUint(id, 10) + ": " + c.Title + "\n")
	b.WriteString("Status: " + string(c.Status) + "  Priority: " + string(c.Priority) + "\n")
	b.WriteString("Category: " + c.Category)
	if c.Subcategory != nil {
		b.WriteString(" / " + *c.Subcategory)
	}
	b.WriteString("\nFiled by: " + c.FiledBy)
	return b.String()
}

func formatStats(s models.Stats) string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "stats unavailable"
	}
	return string(data)
}
