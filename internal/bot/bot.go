package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"igrelay/pkg/logger"
)

// UpdateSource delivers Telegram updates until ctx is done
type UpdateSource interface {
	Updates(ctx context.Context) tgbotapi.UpdatesChannel
}

// Bot feeds updates from a source into a Handler
type Bot struct {
	source  UpdateSource
	handler *Handler
	logger  logger.Logger
}

// New creates a Bot
func New(source UpdateSource, handler *Handler, log logger.Logger) *Bot {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bot{source: source, handler: handler, logger: log.WithField("component", "bot")}
}

// Run handles updates until ctx is done or the source closes
func (b *Bot) Run(ctx context.Context) error {
	updates := b.source.Updates(ctx)
	logger.LogComponentStart("bot", nil)
	defer logger.LogComponentStop("bot", "update loop finished")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handler.HandleUpdate(ctx, update)
		}
	}
}
