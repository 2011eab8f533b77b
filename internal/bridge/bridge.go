// Package bridge turns inbound chat messages into agent turns: it resolves
// the conversation's agent, streams the exchange into an outbound renderer,
// and handles the bot's control commands.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/haasonsaas/agentbridge/internal/channels/telegram"
	"github.com/haasonsaas/agentbridge/internal/exchange"
	"github.com/haasonsaas/agentbridge/internal/letta"
	"github.com/haasonsaas/agentbridge/internal/markdown"
	"github.com/haasonsaas/agentbridge/internal/observability"
	"github.com/haasonsaas/agentbridge/internal/outbound"
	"github.com/haasonsaas/agentbridge/internal/sessions"
	"github.com/haasonsaas/agentbridge/internal/tools"
	"github.com/haasonsaas/agentbridge/internal/typing"
)

// Fixed replies.
const (
	ReplyFailure         = "Sorry, something went wrong on my side."
	ReplyRestarted       = "Agent restarted! Ready for a fresh conversation."
	ReplyRestartFailed   = "Sorry, something went wrong while restarting the agent."
	ReplyForgotten       = "Conversation forgotten. Send a message to start a new one."
	ReplyNothingToForget = "There is no conversation to forget."
	ReplyForgetFailed    = "Sorry, something went wrong while forgetting the conversation."

	// GreetingText is sent to a freshly created agent on /start.
	GreetingText = "Let's get started"
)

// maxInputSize caps the text forwarded to the agent.
const maxInputSize = 1 << 20

// Sessions resolves conversations to agents.
type Sessions interface {
	Resolve(ctx context.Context, key sessions.Key) (agentID string, created bool, err error)
	Reset(ctx context.Context, key sessions.Key) (string, error)
	Delete(ctx context.Context, key sessions.Key) (bool, error)
}

// Exchanger runs one turn against an agent.
type Exchanger interface {
	Exchange(ctx context.Context, turn exchange.Turn) (exchange.Result, error)
}

// Chat is the messaging surface the bridge writes to.
type Chat interface {
	outbound.Messenger
	Typing(ctx context.Context, chatID, threadID string) error
}

// Toolbox supplies client-side tools for a turn. *tools.Registry
// implements it.
type Toolbox interface {
	Catalog() []letta.ClientTool
	Handle(ctx context.Context, call exchange.ToolCall) (exchange.ToolResult, error)
}

// Config configures a Bridge.
type Config struct {
	Sessions  Sessions
	Exchanger Exchanger
	Chat      Chat
	// Tools is optional.
	Tools Toolbox

	TableMode      markdown.TableMode
	EditInterval   time.Duration
	TypingInterval time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Bridge handles one inbound message at a time per call. It holds no
// per-conversation state; concurrent calls are safe.
type Bridge struct {
	sessions  Sessions
	exchanger Exchanger
	chat      Chat
	tools     Toolbox

	tableMode      markdown.TableMode
	editInterval   time.Duration
	typingInterval time.Duration

	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// New creates a Bridge.
func New(cfg Config) (*Bridge, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("sessions are required")
	}
	if cfg.Exchanger == nil {
		return nil, errors.New("exchanger is required")
	}
	if cfg.Chat == nil {
		return nil, errors.New("chat is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		sessions:       cfg.Sessions,
		exchanger:      cfg.Exchanger,
		chat:           cfg.Chat,
		tools:          cfg.Tools,
		tableMode:      cfg.TableMode,
		editInterval:   cfg.EditInterval,
		typingInterval: cfg.TypingInterval,
		logger:         cfg.Logger.With("component", "bridge"),
		metrics:        cfg.Metrics,
		tracer:         cfg.Tracer,
	}, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a character.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Handle processes one inbound message. Failures are reported to the chat
// and returned for logging; they never reach the platform.
func (b *Bridge) Handle(ctx context.Context, in telegram.Inbound) error {
	if len(in.Text) > maxInputSize {
		observability.Logger(ctx, b.logger).Warn("input message too large, truncating",
			"original_size", len(in.Text),
			"max_size", maxInputSize)
		in.Text = truncateUTF8(in.Text, maxInputSize)
	}

	key := sessions.Key{ChatID: in.ChatID, ThreadID: in.ThreadID}
	if handled, err := b.handleCommand(ctx, key, in); handled {
		return err
	}

	done := b.metrics.TurnStarted("message")
	err := b.converse(ctx, key, in.Text, false)
	done(err)
	return err
}

// converse runs a turn for text. With onlyIfCreated set the turn runs only
// when resolving provisioned a new agent.
func (b *Bridge) converse(ctx context.Context, key sessions.Key, text string, onlyIfCreated bool) error {
	ctx, span := b.tracer.Start(ctx, "bridge.turn", "chat_id", key.ChatID, "thread_id", key.Thread())
	defer span.End()

	keepalive := typing.Start(ctx, func(ctx context.Context) error {
		return b.chat.Typing(ctx, key.ChatID, key.ThreadID)
	}, typing.Config{Interval: b.typingInterval, Logger: b.logger})
	defer keepalive.Stop()

	agentID, created, err := b.sessions.Resolve(ctx, key)
	if err != nil {
		observability.RecordError(span, err)
		b.apologize(ctx, key, nil, err)
		return err
	}
	ctx = observability.WithAgent(ctx, agentID)
	if onlyIfCreated && !created {
		observability.Logger(ctx, b.logger).Debug("agent already exists, skipping greeting")
		return nil
	}

	renderer, err := outbound.New(outbound.Config{
		Messenger:   b.chat,
		ChatID:      key.ChatID,
		ThreadID:    key.ThreadID,
		MinInterval: b.editInterval,
		TableMode:   b.tableMode,
		Logger:      b.logger,
		Metrics:     b.metrics,
	})
	if err != nil {
		return err
	}

	turn := exchange.Turn{
		AgentID: agentID,
		Text:    text,
		OnToken: renderer.OnToken,
	}
	if b.tools != nil {
		turn.Tools = b.tools.Catalog()
		turn.OnToolCall = b.tools.Handle
	}

	toolCtx := tools.WithScope(ctx, tools.Scope{ChatID: key.ChatID, ThreadID: key.ThreadID})
	res, err := b.exchanger.Exchange(toolCtx, turn)
	keepalive.Stop()
	if err != nil {
		observability.RecordError(span, err)
		b.apologize(ctx, key, renderer, err)
		return err
	}
	renderer.Finalize(ctx)
	observability.Logger(ctx, b.logger).Info("turn complete",
		"rounds", res.Rounds,
		"tokens", res.Tokens,
		"tool_calls", res.ToolCalls,
		"tool_failures", res.ToolFailures)
	return nil
}

// apologize publishes whatever the renderer holds and then sends exactly
// one failure reply.
func (b *Bridge) apologize(ctx context.Context, key sessions.Key, renderer *outbound.Renderer, cause error) {
	observability.Logger(ctx, b.logger).Error("turn failed", "error", cause)
	// The turn context may be what failed; replies use a fresh one.
	replyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if renderer != nil {
		renderer.Flush(replyCtx, true)
	}
	b.reply(replyCtx, key, ReplyFailure)
}

// reply sends a fixed text as a new message. Send failures are logged.
func (b *Bridge) reply(ctx context.Context, key sessions.Key, text string) {
	if _, err := b.chat.Send(ctx, key.ChatID, key.ThreadID, markdown.Escape(text)); err != nil {
		observability.Logger(ctx, b.logger).Warn("failed to send reply", "error", err)
	}
}
