package telegram

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// DefaultAllowedUpdates are the update kinds the bridge handles.
var DefaultAllowedUpdates = []string{"message"}

// WebhookOptions configures registration.
type WebhookOptions struct {
	URL                string
	Secret             string
	DropPendingUpdates bool
	AllowedUpdates     []string
}

// SetWebhook registers the public webhook URL with Telegram.
func SetWebhook(ctx context.Context, client BotClient, opts WebhookOptions) error {
	u, err := url.Parse(opts.URL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ErrConfig(fmt.Sprintf("webhook url must be an absolute https url, got %q", opts.URL), err)
	}
	allowed := opts.AllowedUpdates
	if len(allowed) == 0 {
		allowed = DefaultAllowedUpdates
	}
	ok, err := client.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:                opts.URL,
		SecretToken:        opts.Secret,
		DropPendingUpdates: opts.DropPendingUpdates,
		AllowedUpdates:     allowed,
	})
	if err != nil {
		return classify("set webhook", err)
	}
	if !ok {
		return &Error{Code: ErrCodeUnavailable, Message: "set webhook was not acknowledged"}
	}
	return nil
}

// DeleteWebhook removes the webhook, switching the bot back to polling.
func DeleteWebhook(ctx context.Context, client BotClient, dropPending bool) error {
	ok, err := client.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: dropPending})
	if err != nil {
		return classify("delete webhook", err)
	}
	if !ok {
		return &Error{Code: ErrCodeUnavailable, Message: "delete webhook was not acknowledged"}
	}
	return nil
}

// WebhookInfo returns the current webhook registration.
func WebhookInfo(ctx context.Context, client BotClient) (*models.WebhookInfo, error) {
	info, err := client.GetWebhookInfo(ctx)
	if err != nil {
		return nil, classify("get webhook info", err)
	}
	return info, nil
}
