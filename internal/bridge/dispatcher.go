package bridge

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/haasonsaas/agentbridge/internal/channels/telegram"
	"github.com/haasonsaas/agentbridge/internal/dedupe"
	"github.com/haasonsaas/agentbridge/internal/observability"
)

// Dispatcher defaults.
const (
	DefaultTurnTimeout   = 10 * time.Minute
	DefaultMaxConcurrent = 64
)

// Handler processes one inbound message. *Bridge implements it.
type Handler interface {
	Handle(ctx context.Context, in telegram.Inbound) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Handler Handler
	// TurnTimeout bounds each message's processing.
	TurnTimeout time.Duration
	// MaxConcurrent limits turns in flight. Excess turns wait for a slot.
	MaxConcurrent int
	// Dedupe drops redelivered updates. Optional.
	Dedupe  *dedupe.Cache
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Dispatcher accepts updates from the transport and runs each as an
// independent turn in its own goroutine. Turns derive from the base context
// given at construction, not from the transport's request context, so they
// outlive the webhook response.
type Dispatcher struct {
	base    context.Context
	handler Handler
	timeout time.Duration
	dedupe  *dedupe.Cache
	logger  *slog.Logger
	metrics *observability.Metrics

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewDispatcher creates a Dispatcher whose turns are children of base.
// Cancelling base aborts every turn in flight.
func NewDispatcher(base context.Context, cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		base:    base,
		handler: cfg.Handler,
		timeout: cfg.TurnTimeout,
		dedupe:  cfg.Dedupe,
		logger:  cfg.Logger.With("component", "dispatcher"),
		metrics: cfg.Metrics,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// HandleUpdate is a telegram.UpdateHandler. It returns as soon as the
// update is queued.
func (d *Dispatcher) HandleUpdate(_ context.Context, update *models.Update) {
	in, ok := telegram.FromUpdate(update)
	if !ok {
		d.metrics.Update("ignored")
		return
	}
	d.Dispatch(in)
}

// Dispatch starts a turn for in. It reports false when the update was a
// duplicate or the dispatcher is shutting down.
func (d *Dispatcher) Dispatch(in telegram.Inbound) bool {
	if d.base.Err() != nil {
		d.metrics.Update("rejected")
		return false
	}
	if d.dedupe != nil && in.UpdateID != 0 {
		if d.dedupe.CheckAndMark(strconv.FormatInt(in.UpdateID, 10)) {
			d.metrics.Update("duplicate")
			d.logger.Debug("dropping duplicate update", "update_id", in.UpdateID)
			return false
		}
	}
	d.metrics.Update("accepted")

	d.wg.Add(1)
	go d.run(in)
	return true
}

func (d *Dispatcher) run(in telegram.Inbound) {
	defer d.wg.Done()

	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-d.base.Done():
		return
	}

	ctx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()
	ctx = observability.WithTurn(ctx, uuid.NewString(), in.ChatID, in.ThreadID)
	logger := observability.Logger(ctx, d.logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("turn panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	start := time.Now()
	if err := d.handler.Handle(ctx, in); err != nil {
		logger.Warn("turn failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Debug("turn handled", "duration", time.Since(start))
}

// Wait blocks until every dispatched turn has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
