// Package telegram posts admin alerts for complaint events to a Telegram chat
// and answers a couple of read-only commands there.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"trustline/backend/internal/config"
	"trustline/backend/internal/logger"
)

// Bot owns the Bot API client and the update loop.
type Bot struct {
	API      *tgbotapi.BotAPI
	ChatID   int64
	commands *CommandHandler
}

// NewBot authorizes against the Bot API.
func NewBot(cfg config.TelegramConfig) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	api.Debug = false
	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Bot{API: api, ChatID: cfg.ChatID}, nil
}

// WithCommands enables the admin command handler in Run.
func (b *Bot) WithCommands(stats StatsSource, complaints ComplaintLookup) *Bot {
	b.commands = NewCommandHandler(b.API, b.ChatID, stats, complaints)
	return b
}

// Run polls for updates until ctx is done. Without a command handler it
// returns immediately.
func (b *Bot) Run(ctx context.Context) {
	if b.commands == nil {
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)
	defer b.API.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.commands.Handle(ctx, &update)
		}
	}
}
