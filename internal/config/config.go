// Package config loads the bridge configuration from a YAML or JSON5 file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/haasonsaas/agentbridge/internal/letta"
	"github.com/haasonsaas/agentbridge/internal/markdown"
	"github.com/haasonsaas/agentbridge/internal/ratelimit"
)

// Config is the bridge configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Letta    LettaConfig    `yaml:"letta" json:"letta"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Bridge   BridgeConfig   `yaml:"bridge" json:"bridge"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing"`
}

type TelegramConfig struct {
	BotToken   string `yaml:"bot_token" json:"bot_token"`
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url,omitempty"`
	// WebhookPath enables webhook mode. Empty means long polling.
	WebhookPath   string `yaml:"webhook_path" json:"webhook_path,omitempty"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret,omitempty"`
	// WebhookURL is the public URL registered by "webhook set".
	WebhookURL string           `yaml:"webhook_url" json:"webhook_url,omitempty"`
	RateLimit  ratelimit.Config `yaml:"rate_limit" json:"rate_limit"`
	// TableMode is off, bullets or code.
	TableMode    string        `yaml:"table_mode" json:"table_mode,omitempty" jsonschema:"enum=off,enum=bullets,enum=code"`
	EditInterval time.Duration `yaml:"edit_interval" json:"edit_interval,omitempty"`
	// PollTimeout is the getUpdates long-polling timeout.
	PollTimeout time.Duration `yaml:"poll_timeout" json:"poll_timeout,omitempty"`
}

type LettaConfig struct {
	APIKey          string `yaml:"api_key" json:"api_key"`
	BaseURL         string `yaml:"base_url" json:"base_url,omitempty"`
	Project         string `yaml:"project" json:"project,omitempty"`
	TemplateVersion string `yaml:"template_version" json:"template_version"`
	// MemoryVariables seed new agents. Values must be strings.
	MemoryVariables map[string]any `yaml:"memory_variables" json:"memory_variables,omitempty"`
	Timeout         time.Duration  `yaml:"timeout" json:"timeout,omitempty"`
	RequestTimeout  time.Duration  `yaml:"request_timeout" json:"request_timeout,omitempty"`
}

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// DefaultSQLiteDSN is the database file used when the sqlite driver has no
// dsn.
const DefaultSQLiteDSN = "agentbridge.db"

type StoreConfig struct {
	Driver          string        `yaml:"driver" json:"driver" jsonschema:"enum=memory,enum=sqlite,enum=postgres"`
	DSN             string        `yaml:"dsn" json:"dsn,omitempty"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime,omitempty"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" json:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout,omitempty"`
	MetricsEnabled  bool          `yaml:"metrics_enabled" json:"metrics_enabled"`
}

type BridgeConfig struct {
	TurnTimeout time.Duration `yaml:"turn_timeout" json:"turn_timeout,omitempty"`
	DedupeTTL   time.Duration `yaml:"dedupe_ttl" json:"dedupe_ttl,omitempty"`
	// Tools lists the client-side tools offered to agents.
	Tools []string `yaml:"tools" json:"tools,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format" jsonschema:"enum=json,enum=text"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint" json:"endpoint,omitempty"`
	Insecure     bool    `yaml:"insecure" json:"insecure,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate,omitempty"`
	Environment  string  `yaml:"environment" json:"environment,omitempty"`
}

// KnownTools are the tool names accepted in bridge.tools.
var KnownTools = []string{"edit_forum_topic"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.TableMode == "" {
		cfg.Telegram.TableMode = string(markdown.TableModeBullets)
	}
	if cfg.Telegram.EditInterval == 0 {
		cfg.Telegram.EditInterval = time.Second
	}
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = time.Minute
	}
	if cfg.Telegram.RateLimit == (ratelimit.Config{}) {
		cfg.Telegram.RateLimit = ratelimit.DefaultConfig()
	}
	if cfg.Letta.Timeout == 0 {
		cfg.Letta.Timeout = 30 * time.Second
	}
	if cfg.Letta.RequestTimeout == 0 {
		cfg.Letta.RequestTimeout = 5 * time.Minute
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreSQLite
	}
	if cfg.Store.Driver == StoreSQLite && cfg.Store.DSN == "" {
		cfg.Store.DSN = DefaultSQLiteDSN
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = 10
	}
	if cfg.Store.ConnMaxLifetime == 0 {
		cfg.Store.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Bridge.TurnTimeout == 0 {
		cfg.Bridge.TurnTimeout = 10 * time.Minute
	}
	if cfg.Bridge.DedupeTTL == 0 {
		cfg.Bridge.DedupeTTL = 10 * time.Minute
	}
	if cfg.Bridge.Tools == nil {
		cfg.Bridge.Tools = append([]string(nil), KnownTools...)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n  - " + strings.Join(e.Issues, "\n  - ")
}

// Validate checks the configuration. All issues are reported together.
func (c *Config) Validate() error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		add("telegram.bot_token is required (TELEGRAM_BOT_TOKEN)")
	}
	if p := c.Telegram.WebhookPath; p != "" && !strings.HasPrefix(p, "/") {
		add("telegram.webhook_path must start with '/'")
	}
	if u := c.Telegram.WebhookURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
			add("telegram.webhook_url must be an absolute https url")
		}
	}
	if !markdown.TableMode(c.Telegram.TableMode).Valid() {
		add("telegram.table_mode must be off, bullets or code")
	}
	if c.Telegram.EditInterval < 0 {
		add("telegram.edit_interval must not be negative")
	}
	if c.Telegram.PollTimeout < 2*time.Second {
		add("telegram.poll_timeout must be at least 2s")
	}

	if strings.TrimSpace(c.Letta.APIKey) == "" {
		add("letta.api_key is required (LETTA_API_KEY)")
	}
	if strings.TrimSpace(c.Letta.TemplateVersion) == "" {
		add("letta.template_version is required (LETTA_TEMPLATE_VERSION)")
	}
	if _, err := letta.ResolveBaseURL(c.Letta.BaseURL, c.Letta.Project); err != nil {
		add("letta.base_url: %v", err)
	}
	if _, err := c.Letta.TemplateMemory(); err != nil {
		add("letta.memory_variables: %v", err)
	}

	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.DSN == "" || c.Store.DSN == DefaultSQLiteDSN {
			add("store.dsn is required for the postgres driver")
		}
	default:
		add("store.driver must be memory, sqlite or postgres")
	}

	if c.Bridge.TurnTimeout < 0 || c.Bridge.DedupeTTL < 0 {
		add("bridge timeouts must not be negative")
	}
	for _, name := range c.Bridge.Tools {
		if !isKnownTool(name) {
			add("bridge.tools: unknown tool %q", name)
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		add("tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// TemplateMemory returns the memory variables as strings. A non-string
// value is a *letta.ConfigError naming the key.
func (c LettaConfig) TemplateMemory() (map[string]string, error) {
	if c.MemoryVariables == nil {
		return nil, nil
	}
	return letta.NormalizeMemoryVariables(c.MemoryVariables)
}

// WebhookMode reports whether updates arrive by webhook.
func (c *Config) WebhookMode() bool {
	return c.Telegram.WebhookPath != ""
}

func isKnownTool(name string) bool {
	return slices.Contains(KnownTools, name)
}

// IsValidation reports whether err came from Validate.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
