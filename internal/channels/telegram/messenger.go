package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/agentbridge/internal/ratelimit"
)

// Messenger sends and edits MarkdownV2 messages. Text must already be
// escaped. Writes to one chat are paced by a per-chat token bucket, and a
// chat that hit flood control is held back for the retry-after window.
type Messenger struct {
	client  BotClient
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	holds map[string]time.Time
}

// MessengerConfig configures a Messenger.
type MessengerConfig struct {
	// RateLimit paces sends and edits per chat. The zero value disables
	// pacing.
	RateLimit ratelimit.Config
	Logger    *slog.Logger
}

// NewMessenger wraps client.
func NewMessenger(client BotClient, cfg MessengerConfig) (*Messenger, error) {
	if client == nil {
		return nil, errors.New("bot client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Messenger{
		client:  client,
		limiter: ratelimit.NewLimiter(cfg.RateLimit),
		logger:  cfg.Logger.With("component", "telegram"),
		now:     time.Now,
		holds:   make(map[string]time.Time),
	}, nil
}

// Send posts a new message and returns its id.
func (m *Messenger) Send(ctx context.Context, chat, thread, text string) (string, error) {
	if err := m.admit(ctx, chat); err != nil {
		return "", err
	}
	msg, err := m.client.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID(chat),
		MessageThreadID: threadID(thread),
		Text:            text,
		ParseMode:       models.ParseModeMarkdown,
	})
	if err != nil {
		return "", m.failed(chat, "send message", err)
	}
	if msg == nil {
		return "", &Error{Code: ErrCodeUnavailable, Message: "send message returned no message"}
	}
	return strconv.Itoa(msg.ID), nil
}

// Edit replaces the text of a message. An edit that would not change the
// message succeeds.
func (m *Messenger) Edit(ctx context.Context, chat, messageID, text string) error {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return &Error{Code: ErrCodeInvalid, Message: "invalid message id " + strconv.Quote(messageID), Err: err}
	}
	if err := m.admit(ctx, chat); err != nil {
		return err
	}
	_, err = m.client.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID(chat),
		MessageID: id,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if isNotModified(err) {
		m.logger.Debug("edit skipped, message not modified", "chat_id", chat, "message_id", messageID)
		return nil
	}
	return m.failed(chat, "edit message", err)
}

// admit fails fast while chat is under flood control and otherwise waits
// for the chat's rate limiter.
func (m *Messenger) admit(ctx context.Context, chat string) error {
	m.mu.Lock()
	until, held := m.holds[chat]
	now := m.now()
	if held && !now.Before(until) {
		delete(m.holds, chat)
		held = false
	}
	m.mu.Unlock()
	if held {
		return &Error{Code: ErrCodeRateLimit, Message: "chat is under flood control", RetryAfter: until.Sub(now)}
	}
	return m.limiter.Wait(ctx, chat)
}

// failed classifies a write error and starts a hold on flood control.
func (m *Messenger) failed(chat, op string, err error) error {
	err = classify(op, err)
	if !IsRateLimited(err) {
		return err
	}
	var tgErr *Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		m.mu.Lock()
		m.holds[chat] = m.now().Add(tgErr.RetryAfter)
		m.mu.Unlock()
	}
	m.logger.Warn("flood control", "chat_id", chat, "op", op, "retry_after", tgErr.RetryAfter)
	return err
}

// Typing shows the typing indicator in a chat or forum thread.
func (m *Messenger) Typing(ctx context.Context, chat, thread string) error {
	_, err := m.client.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID:          chatID(chat),
		MessageThreadID: threadID(thread),
		Action:          models.ChatActionTyping,
	})
	return classify("send chat action", err)
}

// EditForumTopic renames a forum topic and optionally changes its icon.
func (m *Messenger) EditForumTopic(ctx context.Context, chat, thread, name, iconCustomEmojiID string) error {
	id := threadID(thread)
	if id == 0 {
		return &Error{Code: ErrCodeInvalid, Message: "not a forum topic"}
	}
	_, err := m.client.EditForumTopic(ctx, &bot.EditForumTopicParams{
		ChatID:            chatID(chat),
		MessageThreadID:   id,
		Name:              name,
		IconCustomEmojiID: iconCustomEmojiID,
	})
	return classify("edit forum topic", err)
}
