package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haasonsaas/agentbridge/internal/exchange"
	"github.com/haasonsaas/agentbridge/internal/letta"
	"github.com/haasonsaas/agentbridge/internal/sessions"
)

type sentMessage struct {
	chatID   string
	threadID string
	text     string
}

type fakeChat struct {
	mu      sync.Mutex
	sends   []sentMessage
	edits   []string
	typing  int
	sendErr error
}

func (f *fakeChat) Send(_ context.Context, chatID, threadID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sends = append(f.sends, sentMessage{chatID: chatID, threadID: threadID, text: text})
	return fmt.Sprintf("%d", len(f.sends)), nil
}

func (f *fakeChat) Edit(_ context.Context, _, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeChat) Typing(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeChat) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sends))
	for i, s := range f.sends {
		out[i] = s.text
	}
	return out
}

type fakeSessions struct {
	mu        sync.Mutex
	agentID   string
	created   bool
	err       error
	resetErr  error
	existed   bool
	deleteErr error

	resolved []sessions.Key
	resets   int
	deletes  int
}

func (f *fakeSessions) Resolve(_ context.Context, key sessions.Key) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, key)
	if f.err != nil {
		return "", false, f.err
	}
	return f.agentID, f.created, nil
}

func (f *fakeSessions) Reset(context.Context, sessions.Key) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	if f.resetErr != nil {
		return "", f.resetErr
	}
	return "agent-new", nil
}

func (f *fakeSessions) Delete(context.Context, sessions.Key) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return f.existed, f.deleteErr
}

// fakeExchanger replays tokens into the turn's sink and then returns err.
type fakeExchanger struct {
	mu     sync.Mutex
	tokens []string
	err    error
	turns  []exchange.Turn
	ctxs   []context.Context
}

func (f *fakeExchanger) Exchange(ctx context.Context, turn exchange.Turn) (exchange.Result, error) {
	f.mu.Lock()
	f.turns = append(f.turns, turn)
	f.ctxs = append(f.ctxs, ctx)
	tokens, err := f.tokens, f.err
	f.mu.Unlock()

	for _, tok := range tokens {
		if err := turn.OnToken(ctx, "msg-1", tok); err != nil {
			return exchange.Result{}, err
		}
	}
	return exchange.Result{Rounds: 1, Tokens: len(tokens)}, err
}

func (f *fakeExchanger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns)
}

type fakeToolbox struct{}

func (fakeToolbox) Catalog() []letta.ClientTool {
	return []letta.ClientTool{{Name: "edit_forum_topic"}}
}

func (fakeToolbox) Handle(context.Context, exchange.ToolCall) (exchange.ToolResult, error) {
	return exchange.ToolResult{}, errors.New("unused")
}
