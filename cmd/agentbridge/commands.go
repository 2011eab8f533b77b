package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "agentbridge.yaml"

// configFlag registers the shared --config flag.
func configFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "",
		"Path to YAML or JSON5 configuration file (default "+defaultConfigPath+" when present)")
}

// =============================================================================
// Serve Command
// =============================================================================

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge",
		Long: `Start the bridge.

With telegram.webhook_path set, updates are received on an HTTP endpoint
and, when telegram.webhook_url is also set, the webhook is registered on
startup. Otherwise the bot long-polls Telegram.

In-flight turns are drained on SIGINT/SIGTERM.`,
		Example: `  # Long polling with settings from the environment
  agentbridge serve

  # Webhook mode with a config file and debug logging
  agentbridge serve --config /etc/agentbridge.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}
	configFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// =============================================================================
// Webhook Commands
// =============================================================================

func buildWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}
	cmd.AddCommand(buildWebhookSetCmd(), buildWebhookDeleteCmd(), buildWebhookInfoCmd())
	return cmd
}

func buildWebhookSetCmd() *cobra.Command {
	var (
		configPath  string
		url         string
		dropPending bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Register the public webhook URL with Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebhookSet(cmd, resolveConfigPath(configPath), url, dropPending)
		},
	}
	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&url, "url", "", "Public https URL (default telegram.webhook_url)")
	cmd.Flags().BoolVar(&dropPending, "drop-pending", false, "Drop updates queued while no webhook was set")
	return cmd
}

func buildWebhookDeleteCmd() *cobra.Command {
	var (
		configPath  string
		dropPending bool
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook so the bot can long-poll",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebhookDelete(cmd, resolveConfigPath(configPath), dropPending)
		},
	}
	configFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&dropPending, "drop-pending", false, "Drop queued updates")
	return cmd
}

func buildWebhookInfoCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the current webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebhookInfo(cmd, resolveConfigPath(configPath))
		},
	}
	configFlag(cmd, &configPath)
	return cmd
}

// =============================================================================
// Sessions Commands
// =============================================================================

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage chat-to-agent bindings",
	}
	cmd.AddCommand(
		buildSessionsActionCmd("show", "Show the agent bound to a conversation", runSessionsShow),
		buildSessionsActionCmd("reset", "Replace a conversation's agent with a fresh one", runSessionsReset),
		buildSessionsActionCmd("delete", "Remove a conversation's binding and its agent", runSessionsDelete),
	)
	return cmd
}

type sessionsAction func(cmd *cobra.Command, configPath, chatID, threadID string) error

func buildSessionsActionCmd(use, short string, run sessionsAction) *cobra.Command {
	var configPath, chatID, threadID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if chatID == "" {
				return fmt.Errorf("--chat is required")
			}
			return run(cmd, resolveConfigPath(configPath), chatID, threadID)
		},
	}
	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&chatID, "chat", "", "Telegram chat id")
	cmd.Flags().StringVar(&threadID, "thread", "", "Forum topic id (omit for the chat itself)")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate configuration or print its JSON schema",
	}

	var configPath string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, resolveConfigPath(configPath))
		},
	}
	configFlag(validate, &configPath)

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	}

	cmd.AddCommand(validate, schema)
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentbridge %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
