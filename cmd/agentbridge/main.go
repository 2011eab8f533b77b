// Package main provides the agentbridge CLI, which relays Telegram
// conversations to Letta agents.
//
// # Basic Usage
//
// Start the bridge:
//
//	agentbridge serve --config agentbridge.yaml
//
// Register the public webhook:
//
//	agentbridge webhook set --url https://bot.example.com/telegram/webhook
//
// # Environment Variables
//
// A .env file in the working directory is loaded first. The most common
// settings are:
//
//   - TELEGRAM_BOT_TOKEN: Telegram bot token
//   - TELEGRAM_WEBHOOK_PATH: enables webhook mode when set
//   - LETTA_API_KEY: Letta API key
//   - LETTA_BASE_URL or LETTA_PROJECT: which Letta server to use
//   - LETTA_TEMPLATE_VERSION: template new agents are created from
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentbridge",
		Short: "Relay Telegram conversations to Letta agents",
		Long: `agentbridge gives every Telegram chat (and every forum topic) its own
Letta agent and streams the agent's replies back as edited messages.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildWebhookCmd(),
		buildSessionsCmd(),
		buildConfigCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}
