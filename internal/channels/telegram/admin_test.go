package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
)

func TestSetWebhook(t *testing.T) {
	fb := newFakeBot()
	err := SetWebhook(context.Background(), fb, WebhookOptions{
		URL:    "https://bridge.example.com/telegram/webhook",
		Secret: "s",
	})
	if err != nil {
		t.Fatalf("SetWebhook() error = %v", err)
	}
	p := fb.hooks[0]
	if p.URL != "https://bridge.example.com/telegram/webhook" || p.SecretToken != "s" {
		t.Errorf("params = %+v", p)
	}
	if len(p.AllowedUpdates) != 1 || p.AllowedUpdates[0] != "message" {
		t.Errorf("allowed updates = %v", p.AllowedUpdates)
	}
}

func TestSetWebhookRejects(t *testing.T) {
	for _, u := range []string{"", "http://insecure.example.com/hook", "/relative"} {
		if err := SetWebhook(context.Background(), newFakeBot(), WebhookOptions{URL: u}); err == nil {
			t.Errorf("SetWebhook(%q) should fail", u)
		}
	}

	fb := newFakeBot()
	fb.ack = false
	if err := SetWebhook(context.Background(), fb, WebhookOptions{URL: "https://x.example.com"}); err == nil {
		t.Error("unacknowledged SetWebhook should fail")
	}
}

func TestDeleteWebhookAndInfo(t *testing.T) {
	fb := newFakeBot()
	fb.info = &models.WebhookInfo{URL: "https://x.example.com", PendingUpdateCount: 3}

	if err := DeleteWebhook(context.Background(), fb, true); err != nil {
		t.Fatalf("DeleteWebhook() error = %v", err)
	}
	if !fb.deletes[0].DropPendingUpdates {
		t.Error("drop pending not passed")
	}

	info, err := WebhookInfo(context.Background(), fb)
	if err != nil || info.PendingUpdateCount != 3 {
		t.Errorf("WebhookInfo() = %+v, %v", info, err)
	}

	fb.err = errors.New("Unauthorized")
	if _, err := WebhookInfo(context.Background(), fb); err == nil {
		t.Error("WebhookInfo() should propagate errors")
	}
}

func TestNewBotRequiresToken(t *testing.T) {
	if _, err := NewBot(BotConfig{}, nil); err == nil {
		t.Error("NewBot() without token should fail")
	}
	b, err := NewBot(BotConfig{Token: "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghi", APIBaseURL: "http://127.0.0.1:1"}, nil)
	if err != nil || b == nil {
		t.Errorf("NewBot() = %v, %v", b, err)
	}
}

func TestNewBotUsesPollTimeout(t *testing.T) {
	timeouts := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getUpdates") {
			select {
			case timeouts <- r.FormValue("timeout"):
			default:
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer srv.Close()

	b, err := NewBot(BotConfig{
		Token:       "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghi",
		APIBaseURL:  srv.URL,
		PollTimeout: 5 * time.Second,
	}, func(context.Context, *models.Update) {})
	if err != nil {
		t.Fatalf("NewBot() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	select {
	case got := <-timeouts:
		if got != "4" {
			t.Errorf("getUpdates timeout = %q, want 4", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no getUpdates request")
	}
	cancel()
	<-done
}
