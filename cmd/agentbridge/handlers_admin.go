package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/go-telegram/bot"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentbridge/internal/channels/telegram"
	"github.com/haasonsaas/agentbridge/internal/config"
	"github.com/haasonsaas/agentbridge/internal/sessions"
)

// =============================================================================
// Webhook Command Handlers
// =============================================================================

// adminBot builds a bot client for one-off API calls. Only the telegram
// section of the configuration is required.
func adminBot(configPath string) (*config.Config, *bot.Bot, error) {
	cfg, err := config.Read(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	b, err := telegram.NewBot(telegram.BotConfig{
		Token:      cfg.Telegram.BotToken,
		APIBaseURL: cfg.Telegram.APIBaseURL,
	}, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, b, nil
}

func runWebhookSet(cmd *cobra.Command, configPath, url string, dropPending bool) error {
	cfg, b, err := adminBot(configPath)
	if err != nil {
		return err
	}
	if url == "" {
		url = cfg.Telegram.WebhookURL
	}
	if url == "" {
		return fmt.Errorf("--url or telegram.webhook_url is required")
	}
	if err := telegram.SetWebhook(cmd.Context(), b, telegram.WebhookOptions{
		URL:                url,
		Secret:             cfg.Telegram.WebhookSecret,
		DropPendingUpdates: dropPending,
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Webhook set to %s\n", url)
	return nil
}

func runWebhookDelete(cmd *cobra.Command, configPath string, dropPending bool) error {
	_, b, err := adminBot(configPath)
	if err != nil {
		return err
	}
	if err := telegram.DeleteWebhook(cmd.Context(), b, dropPending); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Webhook deleted.")
	return nil
}

func runWebhookInfo(cmd *cobra.Command, configPath string) error {
	_, b, err := adminBot(configPath)
	if err != nil {
		return err
	}
	info, err := telegram.WebhookInfo(cmd.Context(), b)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	url := info.URL
	if url == "" {
		url = "(none, long polling)"
	}
	fmt.Fprintf(w, "URL:\t%s\n", url)
	fmt.Fprintf(w, "Pending updates:\t%d\n", info.PendingUpdateCount)
	if info.LastErrorMessage != "" {
		fmt.Fprintf(w, "Last error:\t%s (%s)\n", info.LastErrorMessage,
			time.Unix(int64(info.LastErrorDate), 0).UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

// =============================================================================
// Sessions Command Handlers
// =============================================================================

func withResolver(cmd *cobra.Command, configPath string, fn func(*sessions.Resolver) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Logging, false)
	stack, err := openSessions(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(stack.resolver)
}

func runSessionsShow(cmd *cobra.Command, configPath, chatID, threadID string) error {
	key := sessions.Key{ChatID: chatID, ThreadID: threadID}
	return withResolver(cmd, configPath, func(r *sessions.Resolver) error {
		b, err := r.Lookup(cmd.Context(), key)
		if err != nil {
			return err
		}
		if b == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No agent bound to %s.\n", key)
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHAT\tTHREAD\tAGENT\tTEMPLATE\tCREATED")
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			key.ChatID, key.Thread(), b.AgentID, b.TemplateVersion, b.CreatedAt.Format(time.RFC3339))
		return w.Flush()
	})
}

func runSessionsReset(cmd *cobra.Command, configPath, chatID, threadID string) error {
	key := sessions.Key{ChatID: chatID, ThreadID: threadID}
	return withResolver(cmd, configPath, func(r *sessions.Resolver) error {
		agentID, err := r.Reset(cmd.Context(), key)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now served by agent %s.\n", key, agentID)
		return nil
	})
}

func runSessionsDelete(cmd *cobra.Command, configPath, chatID, threadID string) error {
	key := sessions.Key{ChatID: chatID, ThreadID: threadID}
	return withResolver(cmd, configPath, func(r *sessions.Resolver) error {
		existed, err := r.Delete(cmd.Context(), key)
		if err != nil {
			return err
		}
		if !existed {
			fmt.Fprintf(cmd.OutOrStdout(), "No agent bound to %s.\n", key)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Binding for %s deleted.\n", key)
		return nil
	})
}

// =============================================================================
// Config Command Handlers
// =============================================================================

func runConfigValidate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mode := "long polling"
	if cfg.WebhookMode() {
		mode = "webhook at " + cfg.Telegram.WebhookPath
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%s, %s store).\n", mode, cfg.Store.Driver)
	return nil
}

func runConfigSchema(cmd *cobra.Command) error {
	data, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
