package bridge

import (
	"context"

	"github.com/haasonsaas/agentbridge/internal/channels/telegram"
	"github.com/haasonsaas/agentbridge/internal/observability"
	"github.com/haasonsaas/agentbridge/internal/sessions"
)

// Bot commands.
const (
	CommandStart   = "start"
	CommandRestart = "restart"
	CommandReset   = "reset"
	CommandForget  = "forget"
)

// handleCommand runs a control command. It reports false for anything that
// should go to the agent as a normal message, including unknown commands.
func (b *Bridge) handleCommand(ctx context.Context, key sessions.Key, in telegram.Inbound) (bool, error) {
	name := in.Command()
	switch name {
	case CommandStart:
		done := b.metrics.TurnStarted("command")
		err := b.converse(ctx, key, GreetingText, true)
		done(err)
		return true, err
	case CommandRestart, CommandReset:
		done := b.metrics.TurnStarted("command")
		err := b.restart(ctx, key)
		done(err)
		return true, err
	case CommandForget:
		done := b.metrics.TurnStarted("command")
		err := b.forget(ctx, key)
		done(err)
		return true, err
	default:
		return false, nil
	}
}

func (b *Bridge) restart(ctx context.Context, key sessions.Key) error {
	agentID, err := b.sessions.Reset(ctx, key)
	if err != nil {
		observability.Logger(ctx, b.logger).Error("failed to restart agent", "error", err)
		b.reply(ctx, key, ReplyRestartFailed)
		return err
	}
	observability.Logger(observability.WithAgent(ctx, agentID), b.logger).Info("agent restarted")
	b.reply(ctx, key, ReplyRestarted)
	return nil
}

func (b *Bridge) forget(ctx context.Context, key sessions.Key) error {
	existed, err := b.sessions.Delete(ctx, key)
	if err != nil {
		observability.Logger(ctx, b.logger).Error("failed to forget conversation", "error", err)
		b.reply(ctx, key, ReplyForgetFailed)
		return err
	}
	if !existed {
		b.reply(ctx, key, ReplyNothingToForget)
		return nil
	}
	b.reply(ctx, key, ReplyForgotten)
	return nil
}
