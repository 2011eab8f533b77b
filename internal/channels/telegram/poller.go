package telegram

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
)

// Poller receives updates with getUpdates when no webhook is configured.
type Poller struct {
	bot    *bot.Bot
	logger *slog.Logger
}

// NewPoller wraps a bot created with an update handler (see NewBot).
func NewPoller(b *bot.Bot, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{bot: b, logger: logger.With("component", "poller")}
}

// Run removes any webhook, since Telegram refuses getUpdates while one is
// set, and then polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if err := DeleteWebhook(ctx, p.bot, false); err != nil {
		return err
	}
	p.logger.Info("starting long polling")
	p.bot.Start(ctx)
	p.logger.Info("long polling stopped")
	return nil
}
