package telegram

import (
	"strconv"

	"github.com/haasonsaas/agentbridge/internal/sessions"
)

// chatID converts a chat id to the form the Bot API accepts: an integer
// when numeric, otherwise the string (e.g. "@channelname").
func chatID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// threadID returns the numeric forum thread, or 0 for the default thread.
func threadID(id string) int {
	if id == "" || id == sessions.DefaultThread {
		return 0
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0
	}
	return n
}
