package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haasonsaas/agentbridge/internal/letta"
)

// Environment variables that override file settings.
const (
	EnvBotToken        = "TELEGRAM_BOT_TOKEN"
	EnvAPIBaseURL      = "TELEGRAM_API_BASE_URL"
	EnvWebhookPath     = "TELEGRAM_WEBHOOK_PATH"
	EnvWebhookSecret   = "TELEGRAM_WEBHOOK_SECRET"
	EnvWebhookURL      = "TELEGRAM_WEBHOOK_URL"
	EnvLettaAPIKey     = "LETTA_API_KEY"
	EnvLettaBaseURL    = "LETTA_BASE_URL"
	EnvLettaProject    = "LETTA_PROJECT"
	EnvTemplateVersion = "LETTA_TEMPLATE_VERSION"
	EnvTemplateMemory  = letta.MemoryVariablesEnv
	EnvStoreDriver     = "AGENTBRIDGE_STORE_DRIVER"
	EnvStoreDSN        = "AGENTBRIDGE_STORE_DSN"
	EnvListenAddr      = "AGENTBRIDGE_LISTEN_ADDR"
	EnvLogLevel        = "AGENTBRIDGE_LOG_LEVEL"
	EnvLogFormat       = "AGENTBRIDGE_LOG_FORMAT"
	EnvMetricsEnabled  = "AGENTBRIDGE_METRICS_ENABLED"
	EnvOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

type lookupFunc func(string) (string, bool)

// applyEnv overrides cfg with every variable that is set and non-empty.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{EnvBotToken, &cfg.Telegram.BotToken},
		{EnvAPIBaseURL, &cfg.Telegram.APIBaseURL},
		{EnvWebhookPath, &cfg.Telegram.WebhookPath},
		{EnvWebhookSecret, &cfg.Telegram.WebhookSecret},
		{EnvWebhookURL, &cfg.Telegram.WebhookURL},
		{EnvLettaAPIKey, &cfg.Letta.APIKey},
		{EnvLettaBaseURL, &cfg.Letta.BaseURL},
		{EnvLettaProject, &cfg.Letta.Project},
		{EnvTemplateVersion, &cfg.Letta.TemplateVersion},
		{EnvStoreDriver, &cfg.Store.Driver},
		{EnvStoreDSN, &cfg.Store.DSN},
		{EnvListenAddr, &cfg.Server.ListenAddr},
		{EnvLogLevel, &cfg.Logging.Level},
		{EnvLogFormat, &cfg.Logging.Format},
		{EnvOTLPEndpoint, &cfg.Tracing.Endpoint},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && strings.TrimSpace(v) != "" {
			*s.dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup(EnvMetricsEnabled); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMetricsEnabled, err)
		}
		cfg.Server.MetricsEnabled = b
	}

	if v, ok := lookup(EnvTemplateMemory); ok && strings.TrimSpace(v) != "" {
		vars, err := letta.ParseMemoryVariables(v)
		if err != nil {
			return err
		}
		cfg.Letta.MemoryVariables = make(map[string]any, len(vars))
		for k, val := range vars {
			cfg.Letta.MemoryVariables[k] = val
		}
	}
	return nil
}
