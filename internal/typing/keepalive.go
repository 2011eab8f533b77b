// Package typing keeps a chat's "typing" indicator visible while a turn is
// being processed.
package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval refreshes the indicator before the platform's ~5s expiry.
const DefaultInterval = 4 * time.Second

// DefaultTTL stops the indicator if a turn never calls Stop.
const DefaultTTL = 10 * time.Minute

// SendFunc shows the typing indicator once.
type SendFunc func(ctx context.Context) error

// Config configures a Keepalive.
type Config struct {
	Interval time.Duration
	TTL      time.Duration
	Logger   *slog.Logger
}

// Keepalive repeatedly sends the typing indicator until stopped. Once
// stopped it is sealed: no send happens after Stop returns.
type Keepalive struct {
	send     SendFunc
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Start sends the indicator immediately and then every interval until Stop
// is called, ctx is done, or the TTL expires.
func Start(ctx context.Context, send SendFunc, cfg Config) *Keepalive {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	k := &Keepalive{
		send:     send,
		interval: cfg.Interval,
		ttl:      cfg.TTL,
		logger:   cfg.Logger.With("component", "typing"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go k.run(ctx)
	return k
}

func (k *Keepalive) run(ctx context.Context) {
	defer close(k.doneCh)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	ttl := time.NewTimer(k.ttl)
	defer ttl.Stop()

	k.sendOnce(ctx)
	for {
		select {
		case <-k.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ttl.C:
			k.logger.Debug("typing indicator expired", "ttl", k.ttl)
			return
		case <-ticker.C:
			// Stop may race with the tick.
			select {
			case <-k.stopCh:
				return
			default:
			}
			k.sendOnce(ctx)
		}
	}
}

func (k *Keepalive) sendOnce(ctx context.Context) {
	if err := k.send(ctx); err != nil && ctx.Err() == nil {
		k.logger.Debug("typing indicator failed", "error", err)
	}
}

// Stop ends the loop and waits for it to exit. It is safe to call more than
// once.
func (k *Keepalive) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
	<-k.doneCh
}
