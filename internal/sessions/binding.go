// Package sessions keeps the durable binding between a chat conversation and
// the agent that serves it.
package sessions

import (
	"strings"
	"time"
)

// KeyPrefix namespaces binding records in the backing store.
const KeyPrefix = "chat:"

// DefaultThread stands in for the thread of a chat that has no threads, so
// that "chat 42" and "chat 42, thread default" share one record while
// threaded chats never collide with it.
const DefaultThread = "default"

// Key identifies one conversation: a chat and an optional thread inside it.
type Key struct {
	ChatID   string
	ThreadID string
}

// Thread returns the thread id, or DefaultThread when the key has none.
func (k Key) Thread() string {
	if strings.TrimSpace(k.ThreadID) == "" {
		return DefaultThread
	}
	return k.ThreadID
}

// StorageKey returns the backing-store key for k.
func (k Key) StorageKey() string {
	return KeyPrefix + k.ChatID + ":" + k.Thread()
}

func (k Key) String() string {
	return k.ChatID + "/" + k.Thread()
}

// Binding associates a conversation with a provisioned agent.
type Binding struct {
	ChatID          string    `json:"chatId,omitempty"`
	ThreadID        string    `json:"threadId,omitempty"`
	AgentID         string    `json:"agentId"`
	CreatedAt       time.Time `json:"createdAt"`
	TemplateVersion string    `json:"templateVersion"`
}
