package telegram

import (
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

// Inbound is a text message the bridge should handle.
type Inbound struct {
	UpdateID int64
	ChatID   string
	// ThreadID is set only for messages in a forum topic.
	ThreadID string
	SenderID string
	Text     string
}

// Command returns the bot command at the start of the text, lowercased and
// without the leading slash or @botname suffix, or "".
func (in Inbound) Command() string {
	text := strings.TrimSpace(in.Text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}

// FromUpdate extracts the text message carried by update. Updates without
// a message or with empty text are reported as not ok.
func FromUpdate(update *models.Update) (Inbound, bool) {
	if update == nil || update.Message == nil {
		return Inbound{}, false
	}
	msg := update.Message
	if strings.TrimSpace(msg.Text) == "" {
		return Inbound{}, false
	}
	in := Inbound{
		UpdateID: update.ID,
		ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
		Text:     msg.Text,
	}
	if msg.IsTopicMessage && msg.MessageThreadID != 0 {
		in.ThreadID = strconv.Itoa(msg.MessageThreadID)
	}
	if msg.From != nil {
		in.SenderID = strconv.FormatInt(msg.From.ID, 10)
	}
	return in, true
}
