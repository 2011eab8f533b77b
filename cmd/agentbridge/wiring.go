package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/agentbridge/internal/config"
	"github.com/haasonsaas/agentbridge/internal/letta"
	"github.com/haasonsaas/agentbridge/internal/observability"
	"github.com/haasonsaas/agentbridge/internal/sessions"
	"github.com/haasonsaas/agentbridge/internal/tools"
)

// resolveConfigPath falls back to agentbridge.yaml in the working directory
// when it exists. An empty result means environment-only configuration.
func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("AGENTBRIDGE_CONFIG")); env != "" {
		return env
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func newLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := cfg.Level
	if debug {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Format,
		Output: os.Stderr,
	})
}

// openKV opens the binding store selected by cfg.Driver.
func openKV(ctx context.Context, cfg config.StoreConfig) (sessions.KV, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return sessions.NewMemoryKV(), nil
	case config.StoreSQLite:
		kv, err := sessions.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case config.StorePostgres:
		pool := sessions.DefaultPostgresConfig()
		if cfg.MaxOpenConns > 0 {
			pool.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.ConnMaxLifetime > 0 {
			pool.ConnMaxLifetime = cfg.ConnMaxLifetime
		}
		kv, err := sessions.OpenPostgres(cfg.DSN, pool)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func newLettaClient(cfg config.LettaConfig, logger *slog.Logger) (*letta.Client, error) {
	return letta.NewClient(letta.Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Project:   cfg.Project,
		Timeout:   cfg.Timeout,
		Logger:    logger,
		UserAgent: "agentbridge/" + version,
	})
}

// sessionStack is the binding store together with the resolver over it.
type sessionStack struct {
	kv       sessions.KV
	resolver *sessions.Resolver
	client   *letta.Client
}

func (s *sessionStack) Close() error {
	return s.kv.Close()
}

func openSessions(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*sessionStack, error) {
	client, err := newLettaClient(cfg.Letta, logger)
	if err != nil {
		return nil, fmt.Errorf("letta client: %w", err)
	}
	vars, err := cfg.Letta.TemplateMemory()
	if err != nil {
		return nil, err
	}
	kv, err := openKV(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provisioner := sessions.Metered(client, metrics)
	store := sessions.NewStore(kv, provisioner, logger)
	resolver, err := sessions.NewResolver(store, provisioner, sessions.ResolverConfig{
		TemplateVersion: cfg.Letta.TemplateVersion,
		MemoryVariables: vars,
		Logger:          logger,
	})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return &sessionStack{kv: kv, resolver: resolver, client: client}, nil
}

// buildTools registers the configured client-side tools.
func buildTools(names []string, editor tools.TopicEditor, logger *slog.Logger) (*tools.Registry, error) {
	reg := tools.NewRegistry(logger)
	for _, name := range names {
		switch name {
		case tools.EditForumTopicName:
			tool, err := tools.EditForumTopic(editor)
			if err != nil {
				return nil, err
			}
			if err := reg.Register(tool); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown tool %q", name)
		}
	}
	return reg, nil
}

func newPromRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// routerConfig selects the endpoints served over HTTP.
type routerConfig struct {
	WebhookPath string
	Webhook     http.Handler
	Metrics     *prometheus.Registry
}

func newRouter(cfg routerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Webhook != nil && cfg.WebhookPath != "" {
		r.Handle(cfg.WebhookPath, cfg.Webhook)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
	}
	return r
}
