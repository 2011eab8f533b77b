package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// EditForumTopicName is the tool name declared to the agent.
const EditForumTopicName = "edit_forum_topic"

// ErrNoTopic is returned when a topic tool runs outside a forum topic.
var ErrNoTopic = errors.New("this conversation is not a forum topic")

// TopicEditor renames a forum topic on the chat platform.
type TopicEditor interface {
	EditForumTopic(ctx context.Context, chatID, threadID, name, iconCustomEmojiID string) error
}

type editForumTopicArgs struct {
	Name              string `json:"name" jsonschema:"minLength=1,maxLength=128,description=New topic title"`
	IconCustomEmojiID string `json:"icon_custom_emoji_id,omitempty" jsonschema:"description=Custom emoji id for the topic icon"`
}

// EditForumTopic returns the tool that lets the agent rename the forum topic
// it is talking in.
func EditForumTopic(editor TopicEditor) (Tool, error) {
	return New(EditForumTopicName,
		"Rename the current forum topic. Only works inside a forum topic.",
		func(ctx context.Context, args editForumTopicArgs) (string, error) {
			scope, ok := ScopeFrom(ctx)
			if !ok || scope.ThreadID == "" {
				return "", ErrNoTopic
			}
			name := strings.TrimSpace(args.Name)
			if name == "" {
				return "", errors.New("topic name must not be blank")
			}
			if err := editor.EditForumTopic(ctx, scope.ChatID, scope.ThreadID, name, args.IconCustomEmojiID); err != nil {
				return "", fmt.Errorf("edit topic: %w", err)
			}
			return fmt.Sprintf("Topic renamed to %q.", name), nil
		})
}
