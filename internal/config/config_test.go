package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/agentbridge/internal/letta"
)

const minimal = `
telegram:
  bot_token: "123:abc"
letta:
  api_key: key
  project: demo
  template_version: "assistant:latest"
`

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

// clearEnv unsets every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvBotToken, EnvAPIBaseURL, EnvWebhookPath, EnvWebhookSecret, EnvWebhookURL,
		EnvLettaAPIKey, EnvLettaBaseURL, EnvLettaProject, EnvTemplateVersion, EnvTemplateMemory,
		EnvStoreDriver, EnvStoreDSN, EnvListenAddr, EnvLogLevel, EnvLogFormat,
		EnvMetricsEnabled, EnvOTLPEndpoint,
	} {
		t.Setenv(name, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "agentbridge.yaml", minimal))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != StoreSQLite || cfg.Store.DSN != "agentbridge.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Bridge.TurnTimeout != 10*time.Minute || cfg.Letta.RequestTimeout != 5*time.Minute {
		t.Errorf("timeouts = %v, %v", cfg.Bridge.TurnTimeout, cfg.Letta.RequestTimeout)
	}
	if cfg.Telegram.EditInterval != time.Second || cfg.Telegram.TableMode != "bullets" || cfg.Telegram.PollTimeout != time.Minute {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if !cfg.Telegram.RateLimit.Enabled || len(cfg.Bridge.Tools) != 1 {
		t.Errorf("rate limit = %+v, tools = %v", cfg.Telegram.RateLimit, cfg.Bridge.Tools)
	}
	if cfg.WebhookMode() {
		t.Error("no webhook path means polling")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "agentbridge.yaml", minimal+"\nstore:\n  driver: sqlite\n  extra: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "agentbridge.yaml", minimal+`
bridge:
  turn_timeout: 90s
  tools: []
telegram_extra: null
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "telegram_extra") {
		t.Fatalf("expected unknown field error, got %v", err)
	}

	path = writeConfig(t, "agentbridge.yaml", minimal+`
bridge:
  turn_timeout: 90s
  tools: []
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Bridge.TurnTimeout != 90*time.Second || len(cfg.Bridge.Tools) != 0 {
		t.Errorf("bridge = %+v", cfg.Bridge)
	}
}

func TestLoadJSON5WithInclude(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(base, []byte("letta:\n  api_key: from-base\n  base_url: http://localhost:8283\n  template_version: base:1\nlogging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "agentbridge.json5")
	contents := `{
  // shared settings
  "$include": "base.yaml",
  telegram: { bot_token: "123:abc" },
  letta: { template_version: "main:2" },
}`
	if err := os.WriteFile(main, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Letta.APIKey != "from-base" || cfg.Letta.TemplateVersion != "main:2" || cfg.Letta.BaseURL == "" {
		t.Errorf("letta = %+v", cfg.Letta)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	_ = os.WriteFile(a, []byte(`$include: b.yaml`), 0o644)
	_ = os.WriteFile(b, []byte(`$include: a.yaml`), 0o644)

	if _, err := Load(a); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadExpandsVariablesAroundInclude(t *testing.T) {
	clearEnv(t)
	t.Setenv("BRIDGE_TEST_KEY", "expanded-key")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "letta.yaml"), []byte("letta:\n  api_key: ${BRIDGE_TEST_KEY}\n  project: demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "agentbridge.yaml")
	contents := "$include: letta.yaml\ntelegram:\n  bot_token: \"123:abc\"\nletta:\n  template_version: \"assistant:1\"\n"
	if err := os.WriteFile(main, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Letta.APIKey != "expanded-key" || cfg.Letta.TemplateVersion != "assistant:1" {
		t.Errorf("letta = %+v", cfg.Letta)
	}
}

func TestExpandEnvKeepsIncludeKey(t *testing.T) {
	t.Setenv("include", "clobbered")
	t.Setenv("BRIDGE_TEST_NAME", "bridge")
	tests := []struct {
		in   string
		want string
	}{
		{"$include: a.yaml", "$include: a.yaml"},
		{`"${include}": "a.yaml"`, `"$include": "a.yaml"`},
		{"name: ${BRIDGE_TEST_NAME}", "name: bridge"},
		{"name: $BRIDGE_TEST_NAME", "name: bridge"},
	}
	for _, tt := range tests {
		if got := expandEnv(tt.in); got != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "999:env")
	t.Setenv(EnvLettaAPIKey, "env-key")
	t.Setenv(EnvTemplateVersion, "env:3")
	t.Setenv(EnvWebhookPath, "/telegram/webhook")
	t.Setenv(EnvStoreDriver, "memory")
	t.Setenv(EnvTemplateMemory, `{"persona":"helpful"}`)
	t.Setenv(EnvMetricsEnabled, "true")

	cfg, err := Load(writeConfig(t, "agentbridge.yaml", minimal))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telegram.BotToken != "999:env" || cfg.Letta.APIKey != "env-key" || cfg.Letta.TemplateVersion != "env:3" {
		t.Errorf("env not applied: %+v %+v", cfg.Telegram, cfg.Letta)
	}
	if !cfg.WebhookMode() || cfg.Store.Driver != StoreMemory || !cfg.Server.MetricsEnabled {
		t.Errorf("cfg = %+v", cfg)
	}
	vars, err := cfg.Letta.TemplateMemory()
	if err != nil || vars["persona"] != "helpful" {
		t.Errorf("TemplateMemory() = %v, %v", vars, err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBotToken, "1:x")
	t.Setenv(EnvLettaAPIKey, "k")
	t.Setenv(EnvTemplateVersion, "t:1")
	t.Setenv(EnvLettaProject, "demo")
	if _, err := Load(""); err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
}

func TestMemoryVariablesValidation(t *testing.T) {
	t.Run("environment payload not an object", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvTemplateMemory, `["a"]`)
		_, err := Load(writeConfig(t, "agentbridge.yaml", minimal))
		var cfgErr *letta.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("error = %v, want ConfigError", err)
		}
	})

	t.Run("environment value not a string", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvTemplateMemory, `{"persona":"x","age":3}`)
		_, err := Load(writeConfig(t, "agentbridge.yaml", minimal))
		var cfgErr *letta.ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Key != "age" {
			t.Fatalf("error = %v, want ConfigError for age", err)
		}
	})

	t.Run("file value not a string", func(t *testing.T) {
		clearEnv(t)
		path := writeConfig(t, "agentbridge.yaml", minimal+"  memory_variables:\n    retries: 3\n")
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "retries") {
			t.Fatalf("error = %v, want memory variable error", err)
		}
	})
}

func TestValidateCollectsIssues(t *testing.T) {
	cfg := Default()
	cfg.Telegram.WebhookPath = "no-slash"
	cfg.Telegram.WebhookURL = "http://plain.example.com"
	cfg.Telegram.TableMode = "html"
	cfg.Telegram.PollTimeout = time.Second
	cfg.Store.Driver = "postgres"
	cfg.Store.DSN = ""
	cfg.Bridge.Tools = []string{"launch_rockets"}
	cfg.Tracing.SamplingRate = 2

	err := cfg.Validate()
	if !IsValidation(err) {
		t.Fatalf("Validate() error = %v", err)
	}
	ve := err.(*ValidationError)
	for _, want := range []string{
		"telegram.bot_token", "letta.api_key", "letta.template_version",
		"webhook_path", "webhook_url", "table_mode", "poll_timeout", "store.dsn", "launch_rockets", "sampling_rate",
	} {
		if !strings.Contains(ve.Error(), want) {
			t.Errorf("missing issue %q in %v", want, ve.Issues)
		}
	}
}

func TestValidatePostgresNeedsOwnDSN(t *testing.T) {
	for _, dsn := range []string{"", DefaultSQLiteDSN} {
		cfg := Default()
		cfg.Store.Driver = StorePostgres
		cfg.Store.DSN = dsn
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "store.dsn") {
			t.Errorf("dsn %q: Validate() error = %v, want store.dsn issue", dsn, err)
		}
	}

	cfg := Default()
	cfg.Store.Driver = StorePostgres
	cfg.Store.DSN = "postgres://bridge@localhost/bridge"
	if err := cfg.Validate(); err != nil && strings.Contains(err.Error(), "store.dsn") {
		t.Errorf("Validate() reported store.dsn for a postgres dsn: %v", err)
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	var doc struct {
		ID         string                     `json:"$id"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc.ID != SchemaID {
		t.Errorf("$id = %q", doc.ID)
	}
	for _, key := range []string{"telegram", "letta", "store", includeKey} {
		if _, ok := doc.Properties[key]; !ok {
			t.Errorf("schema has no %q property", key)
		}
	}
	if !strings.Contains(string(data), "template_version") || !strings.Contains(string(data), "bot_token") {
		t.Error("schema should use yaml field names")
	}
}

func TestJSONSchemaValidatesConfigFiles(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema() error = %v", err)
	}
	schema, err := santhosh.CompileString(SchemaID, string(data))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"minimal", minimal, false},
		{"unknown top-level key", minimal + "\n$include: [base.yaml]\ntelegram_extra: {}\n", true},
		{"duration strings", "$include: base.yaml\ntelegram:\n  edit_interval: 1500ms\n  poll_timeout: 45s\nbridge:\n  turn_timeout: 1h30m\n", false},
		{"bad duration", "bridge:\n  turn_timeout: soon\n", true},
		{"rate limit", "telegram:\n  rate_limit:\n    requests_per_second: 1.5\n    burst_size: 3\n    enabled: true\n", false},
		{"unknown nested key", "store:\n  driver: sqlite\n  extra: true\n", true},
		{"bad enum", "store:\n  driver: mysql\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]any
			if err := yaml.Unmarshal([]byte(tt.doc), &raw); err != nil {
				t.Fatalf("yaml: %v", err)
			}
			// Round-trip through JSON so numbers have JSON types.
			encoded, err := json.Marshal(raw)
			if err != nil {
				t.Fatal(err)
			}
			var v any
			if err := json.Unmarshal(encoded, &v); err != nil {
				t.Fatal(err)
			}
			err = schema.Validate(v)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
