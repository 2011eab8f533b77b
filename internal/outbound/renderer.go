// Package outbound turns a stream of assistant text into chat messages that
// are sent once and then edited in place as more text arrives.
package outbound

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/agentbridge/internal/markdown"
	"github.com/haasonsaas/agentbridge/internal/observability"
)

// DefaultMinInterval is the minimum time between edits of a published
// message.
const DefaultMinInterval = time.Second

// Messenger is the chat platform as seen by the renderer. Text is already
// escaped for the platform's markup mode.
type Messenger interface {
	Send(ctx context.Context, chatID, threadID, text string) (messageID string, err error)
	Edit(ctx context.Context, chatID, messageID, text string) error
}

// throttler is implemented by transport errors that report platform flood
// control.
type throttler interface {
	Throttled() bool
}

func failureStatus(err error) string {
	var t throttler
	if errors.As(err, &t) && t.Throttled() {
		return "throttled"
	}
	return "error"
}

// Config configures a Renderer for one turn.
type Config struct {
	Messenger Messenger
	ChatID    string
	ThreadID  string

	MinInterval time.Duration
	TableMode   markdown.TableMode
	// MaxLength is the longest rendered message in characters. Longer drafts
	// roll over into a new message. Default markdown.MaxMessageLength.
	MaxLength int

	Now     func() time.Time
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Renderer buffers one turn's assistant text and publishes it. All methods
// are serialized, so a message never has two edits in flight.
type Renderer struct {
	mu sync.Mutex

	messenger   Messenger
	chatID      string
	threadID    string
	minInterval time.Duration
	tableMode   markdown.TableMode
	maxLength   int
	now         func() time.Time
	logger      *slog.Logger
	metrics     *observability.Metrics

	draft      string
	upstreamID string
	messageID  string
	lastSent   string
	lastFlush  time.Time
	published  bool
	sent       int
}

// New creates a Renderer in the Empty state.
func New(cfg Config) (*Renderer, error) {
	if cfg.Messenger == nil {
		return nil, errors.New("messenger is required")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("chat id is required")
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.TableMode == "" {
		cfg.TableMode = markdown.TableModeBullets
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = markdown.MaxMessageLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		messenger:   cfg.Messenger,
		chatID:      cfg.ChatID,
		threadID:    cfg.ThreadID,
		minInterval: cfg.MinInterval,
		tableMode:   cfg.TableMode,
		maxLength:   cfg.MaxLength,
		now:         cfg.Now,
		logger:      cfg.Logger.With("component", "renderer", "chat_id", cfg.ChatID),
		metrics:     cfg.Metrics,
	}, nil
}

// OnToken appends text to the draft and attempts an unforced flush. A new
// upstreamID starts a new chat message: the current draft is flushed and
// the renderer returns to Empty. It never returns a transport error, so it
// can be used directly as an exchange token sink.
func (r *Renderer) OnToken(ctx context.Context, upstreamID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if upstreamID != "" && r.upstreamID != "" && upstreamID != r.upstreamID {
		if markdown.Render(r.draft, r.tableMode) != r.lastSent {
			r.flushLocked(ctx, true)
		}
		r.resetLocked()
	}
	if upstreamID != "" {
		r.upstreamID = upstreamID
	}
	r.draft += text
	r.flushLocked(ctx, false)
	return nil
}

// Flush publishes the draft. An unforced flush of an already published
// message waits for MinInterval since the previous flush.
func (r *Renderer) Flush(ctx context.Context, force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked(ctx, force)
}

// Finalize force-flushes whatever is buffered at the end of a turn. Unlike
// Flush it makes no call when the chat already shows the draft.
func (r *Renderer) Finalize(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messageID != "" && markdown.Render(r.draft, r.tableMode) == r.lastSent {
		return
	}
	r.flushLocked(ctx, true)
}

// Published reports whether any message of this turn reached the chat.
func (r *Renderer) Published() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent > 0
}

// Draft returns the buffered text of the current message.
func (r *Renderer) Draft() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft
}

// MessageID returns the platform id of the message being edited, if any.
func (r *Renderer) MessageID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messageID
}

func (r *Renderer) resetLocked() {
	r.draft = ""
	r.messageID = ""
	r.lastSent = ""
	r.published = false
}

func (r *Renderer) flushLocked(ctx context.Context, force bool) {
	if strings.TrimSpace(r.draft) == "" {
		return
	}
	now := r.now()
	if !force && r.published && now.Sub(r.lastFlush) < r.minInterval {
		return
	}
	r.lastFlush = now

	// Freeze full messages and continue the remainder in a new one.
	for !markdown.Fits(r.draft, r.tableMode, r.maxLength) {
		head, tail := markdown.SplitAt(r.draft, r.tableMode, r.maxLength)
		if strings.TrimSpace(head) != "" {
			if !r.publishLocked(ctx, markdown.Render(head, r.tableMode), false) {
				return
			}
			r.messageID = ""
			r.lastSent = ""
			r.published = false
		}
		r.draft = tail
		if strings.TrimSpace(r.draft) == "" {
			r.draft = ""
			return
		}
	}

	r.publishLocked(ctx, markdown.Render(r.draft, r.tableMode), force)
}

// publishLocked sends or edits the current message with rendered. It
// reports whether the platform now shows rendered. Failures are logged and
// absorbed; a known message id is kept for the next attempt.
func (r *Renderer) publishLocked(ctx context.Context, rendered string, force bool) bool {
	if r.messageID == "" {
		id, err := r.messenger.Send(ctx, r.chatID, r.threadID, rendered)
		if err != nil {
			r.metrics.RendererOp("send", failureStatus(err))
			observability.Logger(ctx, r.logger).Warn("send failed", "error", err)
			return false
		}
		r.metrics.RendererOp("send", "success")
		r.messageID = id
		r.lastSent = rendered
		r.published = true
		r.sent++
		return true
	}

	if !force && rendered == r.lastSent {
		r.metrics.RendererOp("edit", "skipped")
		return true
	}
	if err := r.messenger.Edit(ctx, r.chatID, r.messageID, rendered); err != nil {
		r.metrics.RendererOp("edit", failureStatus(err))
		observability.Logger(ctx, r.logger).Warn("edit failed", "message_id", r.messageID, "error", err)
		return false
	}
	r.metrics.RendererOp("edit", "success")
	r.lastSent = rendered
	return true
}
