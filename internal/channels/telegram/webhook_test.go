package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestWebhookHandler(t *testing.T) {
	const body = `{"update_id":77,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"hi"}}`

	tests := []struct {
		name       string
		secret     string
		method     string
		header     string
		body       string
		wantStatus int
		wantUpdate bool
	}{
		{name: "accepts update", method: http.MethodPost, body: body, wantStatus: http.StatusOK, wantUpdate: true},
		{name: "matching secret", secret: "s3cret", header: "s3cret", method: http.MethodPost, body: body, wantStatus: http.StatusOK, wantUpdate: true},
		{name: "wrong secret", secret: "s3cret", header: "nope", method: http.MethodPost, body: body, wantStatus: http.StatusUnauthorized},
		{name: "missing secret", secret: "s3cret", method: http.MethodPost, body: body, wantStatus: http.StatusUnauthorized},
		{name: "get", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "malformed body", method: http.MethodPost, body: "{", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *models.Update
			h := NewWebhookHandler(tt.secret, func(_ context.Context, u *models.Update) { got = u }, nil)

			req := httptest.NewRequest(tt.method, "/telegram/webhook", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set(SecretHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if (got != nil) != tt.wantUpdate {
				t.Fatalf("update delivered = %v, want %v", got != nil, tt.wantUpdate)
			}
			if got != nil && (got.ID != 77 || got.Message.Text != "hi") {
				t.Errorf("update = %+v", got)
			}
		})
	}
}
