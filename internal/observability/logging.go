// Package observability wires logging, metrics and tracing for the bridge.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default info.
	Level string
	// Format is json or text. Default json.
	Format string
	// Output defaults to stdout.
	Output    io.Writer
	AddSource bool
	// RedactPatterns are extra regular expressions whose matches are
	// replaced in string attributes.
	RedactPatterns []string
}

// DefaultRedactPatterns match bot tokens, including ones embedded in
// Telegram API URLs, and other API credentials.
var DefaultRedactPatterns = []string{
	`\d{6,12}:[A-Za-z0-9_-]{30,}`,
	`(?i)(bearer)\s+[A-Za-z0-9_\-\.=]{12,}`,
	`(?i)(api[_-]?key|apikey|secret|token)[\s:=]+["']?[A-Za-z0-9_\-\.]{12,}["']?`,
	`sk-[A-Za-z0-9_-]{20,}`,
}

const redacted = "[REDACTED]"

// NewLogger builds a slog.Logger whose string attributes are scrubbed of
// anything matching the redaction patterns.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var redacts []*regexp.Regexp
	for _, p := range append(append([]string{}, DefaultRedactPatterns...), cfg.RedactPatterns...) {
		if re, err := regexp.Compile(p); err == nil {
			redacts = append(redacts, re)
		}
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Value.Kind() {
			case slog.KindString:
				a.Value = slog.StringValue(redact(redacts, a.Value.String()))
			case slog.KindAny:
				if err, ok := a.Value.Any().(error); ok {
					a.Value = slog.StringValue(redact(redacts, err.Error()))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redact(patterns []*regexp.Regexp, s string) string {
	for _, re := range patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

type contextKey string

const (
	turnIDKey  contextKey = "turn_id"
	chatIDKey  contextKey = "chat_id"
	threadKey  contextKey = "thread_id"
	agentIDKey contextKey = "agent_id"
)

// WithTurn annotates ctx with the identifiers of the turn being processed.
func WithTurn(ctx context.Context, turnID, chatID, threadID string) context.Context {
	ctx = context.WithValue(ctx, turnIDKey, turnID)
	ctx = context.WithValue(ctx, chatIDKey, chatID)
	if threadID != "" {
		ctx = context.WithValue(ctx, threadKey, threadID)
	}
	return ctx
}

// WithAgent records the agent serving the current turn.
func WithAgent(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentIDKey, agentID)
}

// Logger returns base enriched with the turn identifiers stored in ctx.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	var args []any
	for _, k := range []contextKey{turnIDKey, chatIDKey, threadKey, agentIDKey} {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			args = append(args, string(k), v)
		}
	}
	if len(args) == 0 {
		return base
	}
	return base.With(args...)
}
