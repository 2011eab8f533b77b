package telegram

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type fakeBot struct {
	mu sync.Mutex

	sent    []*bot.SendMessageParams
	edits   []*bot.EditMessageTextParams
	actions []*bot.SendChatActionParams
	topics  []*bot.EditForumTopicParams
	hooks   []*bot.SetWebhookParams
	deletes []*bot.DeleteWebhookParams

	nextID int
	err    error
	ack    bool
	info   *models.WebhookInfo
}

func newFakeBot() *fakeBot { return &fakeBot{nextID: 100, ack: true} }

func (f *fakeBot) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	return &models.Message{ID: f.nextID}, nil
}

func (f *fakeBot) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, p)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeBot) SendChatAction(_ context.Context, p *bot.SendChatActionParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, p)
	return f.err == nil, f.err
}

func (f *fakeBot) EditForumTopic(_ context.Context, p *bot.EditForumTopicParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, p)
	return f.err == nil, f.err
}

func (f *fakeBot) SetWebhook(_ context.Context, p *bot.SetWebhookParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, p)
	return f.ack, f.err
}

func (f *fakeBot) DeleteWebhook(_ context.Context, p *bot.DeleteWebhookParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, p)
	return f.ack, f.err
}

func (f *fakeBot) GetWebhookInfo(context.Context) (*models.WebhookInfo, error) {
	return f.info, f.err
}
