package telegram

import (
	"context"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// BotClient is the subset of the Bot API the bridge uses. It lets tests
// substitute a fake for *bot.Bot.
type BotClient interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	EditForumTopic(ctx context.Context, params *bot.EditForumTopicParams) (bool, error)
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
	GetWebhookInfo(ctx context.Context) (*models.WebhookInfo, error)
}

var _ BotClient = (*bot.Bot)(nil)

// UpdateHandler receives inbound updates.
type UpdateHandler func(ctx context.Context, update *models.Update)

// BotConfig configures the underlying Bot API client.
type BotConfig struct {
	Token string
	// APIBaseURL overrides https://api.telegram.org, for local Bot API
	// servers and tests.
	APIBaseURL string
	// WebhookSecret is checked by the library's own webhook handler. The
	// bridge's WebhookHandler checks it independently.
	WebhookSecret string
	// PollTimeout is the long-polling timeout. Zero uses the library default.
	PollTimeout time.Duration
}

// pollTimeoutMargin keeps the HTTP client from giving up before Telegram
// answers a long poll.
const pollTimeoutMargin = 10 * time.Second

// NewBot creates a *bot.Bot. onUpdate receives every update in polling mode
// and may be nil when only outbound calls are needed. The token is not
// verified with getMe, so construction never touches the network.
func NewBot(cfg BotConfig, onUpdate UpdateHandler) (*bot.Bot, error) {
	if cfg.Token == "" {
		return nil, ErrConfig("bot token is required", nil)
	}
	opts := []bot.Option{bot.WithSkipGetMe()}
	if cfg.APIBaseURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.APIBaseURL))
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}
	if cfg.PollTimeout > 0 {
		client := &http.Client{Timeout: cfg.PollTimeout + pollTimeoutMargin}
		opts = append(opts, bot.WithHTTPClient(cfg.PollTimeout, client))
	}
	if onUpdate != nil {
		opts = append(opts, bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			onUpdate(ctx, update)
		}))
	}
	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, ErrConfig("create bot client", err)
	}
	return b, nil
}
