// Package exchange drives one conversational turn against an agent: it
// submits the user's text, forwards streamed assistant text to a sink, runs
// client-side tools the agent asks for, and resubmits their results until
// the agent stops asking.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/haasonsaas/agentbridge/internal/letta"
	"github.com/haasonsaas/agentbridge/internal/observability"
)

// DefaultRequestTimeout bounds each request of a turn. Every approval
// round-trip is a full model turn, so this is generous.
const DefaultRequestTimeout = 5 * time.Minute

const noHandlerMessage = "No tool handler is configured for client-side execution."

// ErrNoHandler is reported for tool calls when the turn has no handler.
var ErrNoHandler = errors.New("no tool handler configured")

// Streamer opens a message stream to an agent.
type Streamer interface {
	StreamMessages(ctx context.Context, agentID string, req letta.MessageRequest) (*letta.EventStream, error)
}

// TokenFunc receives assistant text in stream order. messageID identifies
// the upstream assistant message the fragment belongs to; a new id means a
// new logical response.
type TokenFunc func(ctx context.Context, messageID, text string) error

// ToolCall is a complete client-side tool invocation requested by the agent.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResult is what a handler reports back. An empty Status means success.
type ToolResult struct {
	Status string
	Return string
}

// ToolHandler executes a tool call.
type ToolHandler func(ctx context.Context, call ToolCall) (ToolResult, error)

// Turn describes one exchange.
type Turn struct {
	AgentID string
	Text    string
	// OnToken may be nil, in which case text is discarded.
	OnToken TokenFunc
	// Tools is declared on every request of the turn.
	Tools []letta.ClientTool
	// OnToolCall may be nil; tool calls then fail with an error approval.
	OnToolCall ToolHandler
}

// Result summarizes a finished turn.
type Result struct {
	Rounds       int
	Tokens       int
	ToolCalls    int
	ToolFailures int
}

// Config configures an Engine.
type Config struct {
	Streamer       Streamer
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine runs turns. It holds no per-turn state and is safe for concurrent
// use.
type Engine struct {
	streamer       Streamer
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
	tracer         *observability.Tracer
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Streamer == nil {
		return nil, errors.New("streamer is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		streamer:       cfg.Streamer,
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger.With("component", "exchange"),
		metrics:        cfg.Metrics,
		tracer:         cfg.Tracer,
	}, nil
}

// Exchange runs turn to completion. It returns once a request finishes
// without any approval request. Transport and stream errors, a failing
// token sink, and ctx cancellation end the turn with an error; tool
// failures never do.
func (e *Engine) Exchange(ctx context.Context, turn Turn) (Result, error) {
	var res Result
	if strings.TrimSpace(turn.AgentID) == "" {
		return res, errors.New("agent id is required")
	}

	ctx, span := e.tracer.Start(ctx, "exchange.turn", "agent_id", turn.AgentID, "tools", len(turn.Tools))
	defer span.End()
	logger := observability.Logger(ctx, e.logger)

	acc := newAccumulator()
	req := letta.NewInputRequest(turn.Text, turn.Tools)
	for {
		res.Rounds++
		approvals, sawApproval, err := e.round(ctx, turn, req, acc, &res)
		if err != nil {
			observability.RecordError(span, err)
			e.metrics.Rounds(res.Rounds)
			return res, err
		}
		if !sawApproval {
			break
		}
		logger.Debug("resubmitting approvals", "round", res.Rounds, "approvals", len(approvals))
		req = letta.NewApprovalRequest(approvals, turn.Tools)
	}

	if ids := acc.incomplete(); len(ids) > 0 {
		logger.Warn("tool calls never completed", "tool_call_ids", ids)
	}
	e.metrics.Rounds(res.Rounds)
	logger.Debug("turn complete",
		"rounds", res.Rounds,
		"tokens", res.Tokens,
		"tool_calls", res.ToolCalls)
	return res, nil
}

// round sends one request and consumes its stream. It returns the approvals
// produced and whether any approval request was seen.
func (e *Engine) round(ctx context.Context, turn Turn, req letta.MessageRequest, acc *accumulator, res *Result) ([]letta.Approval, bool, error) {
	rctx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	stream, err := e.streamer.StreamMessages(rctx, turn.AgentID, req)
	if err != nil {
		return nil, false, fmt.Errorf("round %d: %w", res.Rounds, err)
	}
	defer stream.Close()

	var approvals []letta.Approval
	sawApproval := false
	for stream.Next() {
		ev := stream.Event()
		switch ev.MessageType {
		case letta.MessageTypeAssistant:
			for _, part := range ev.Content {
				if strings.TrimSpace(part) == "" {
					continue
				}
				res.Tokens++
				if turn.OnToken == nil {
					continue
				}
				if err := turn.OnToken(ctx, ev.ID, part); err != nil {
					return nil, false, fmt.Errorf("token sink: %w", err)
				}
			}
		case letta.MessageTypeApprovalRequest:
			sawApproval = true
			for _, call := range acc.merge(ev.AllToolCalls()) {
				approvals = append(approvals, e.execute(ctx, turn.OnToolCall, call, res))
			}
		}
	}
	if err := stream.Err(); err != nil {
		if ctxErr := rctx.Err(); ctxErr != nil {
			return nil, false, fmt.Errorf("round %d: %w", res.Rounds, ctxErr)
		}
		return nil, false, fmt.Errorf("round %d: %w", res.Rounds, err)
	}
	if err := rctx.Err(); err != nil {
		return nil, false, fmt.Errorf("round %d: %w", res.Rounds, err)
	}
	return approvals, sawApproval, nil
}

// execute runs one tool call and converts the outcome into an approval. A
// missing handler, an error or a panic all become error approvals.
func (e *Engine) execute(ctx context.Context, handler ToolHandler, call ToolCall, res *Result) letta.Approval {
	res.ToolCalls++
	ctx, span := e.tracer.Start(ctx, "exchange.tool", "tool", call.Name, "tool_call_id", call.ID)
	defer span.End()

	start := time.Now()
	result, err := invoke(ctx, handler, call)
	failed := err != nil || result.Status == letta.ApprovalError
	e.metrics.ToolCall(call.Name, time.Since(start), failed)

	if err != nil {
		res.ToolFailures++
		observability.RecordError(span, err)
		args := []any{"tool", call.Name, "tool_call_id", call.ID, "error", err}
		var pe *panicError
		if errors.As(err, &pe) {
			args = append(args, "stack", string(pe.stack))
		}
		observability.Logger(ctx, e.logger).Warn("tool execution failed", args...)
		msg := noHandlerMessage
		if !errors.Is(err, ErrNoHandler) {
			msg = "Tool execution failed: " + err.Error()
		}
		return letta.Approval{Type: "tool", ToolCallID: call.ID, Status: letta.ApprovalError, ToolReturn: msg}
	}

	if failed {
		res.ToolFailures++
	}
	status := result.Status
	if status == "" {
		status = letta.ApprovalSuccess
	}
	return letta.Approval{Type: "tool", ToolCallID: call.ID, Status: status, ToolReturn: result.Return}
}

func invoke(ctx context.Context, handler ToolHandler, call ToolCall) (result ToolResult, err error) {
	if handler == nil {
		return ToolResult{}, ErrNoHandler
	}
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return handler(ctx, call)
}

// panicError carries a recovered tool panic. Only the value reaches the
// agent; the stack is logged.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
