package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/agentbridge/internal/bridge"
	"github.com/haasonsaas/agentbridge/internal/channels/telegram"
	"github.com/haasonsaas/agentbridge/internal/config"
	"github.com/haasonsaas/agentbridge/internal/dedupe"
	"github.com/haasonsaas/agentbridge/internal/exchange"
	"github.com/haasonsaas/agentbridge/internal/markdown"
	"github.com/haasonsaas/agentbridge/internal/observability"
)

// runServe loads configuration, wires every component and runs until a
// shutdown signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.Logging, debug)
	slog.SetDefault(logger)

	logger.Info("starting agentbridge",
		"version", version,
		"commit", commit,
		"config", configPath,
		"webhook_mode", cfg.WebhookMode(),
		"store", cfg.Store.Driver,
	)

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "agentbridge",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	promReg := newPromRegistry()
	metrics := observability.NewMetrics(promReg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := openSessions(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	engine, err := exchange.New(exchange.Config{
		Streamer:       stack.client,
		RequestTimeout: cfg.Letta.RequestTimeout,
		Logger:         logger,
		Metrics:        metrics,
		Tracer:         tracer,
	})
	if err != nil {
		return err
	}

	// Turns outlive the signal context so shutdown can drain them.
	turnCtx, cancelTurns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTurns()

	var dispatcher *bridge.Dispatcher
	onUpdate := func(ctx context.Context, update *models.Update) {
		dispatcher.HandleUpdate(ctx, update)
	}

	var pollHandler telegram.UpdateHandler
	if !cfg.WebhookMode() {
		pollHandler = onUpdate
	}
	tgBot, err := telegram.NewBot(telegram.BotConfig{
		Token:         cfg.Telegram.BotToken,
		APIBaseURL:    cfg.Telegram.APIBaseURL,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		PollTimeout:   cfg.Telegram.PollTimeout,
	}, pollHandler)
	if err != nil {
		return err
	}
	messenger, err := telegram.NewMessenger(tgBot, telegram.MessengerConfig{
		RateLimit: cfg.Telegram.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	toolbox, err := buildTools(cfg.Bridge.Tools, messenger, logger)
	if err != nil {
		return err
	}

	br, err := bridge.New(bridge.Config{
		Sessions:     stack.resolver,
		Exchanger:    engine,
		Chat:         messenger,
		Tools:        toolbox,
		TableMode:    markdown.TableMode(cfg.Telegram.TableMode),
		EditInterval: cfg.Telegram.EditInterval,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
	})
	if err != nil {
		return err
	}

	seen := dedupe.New(cfg.Bridge.DedupeTTL, dedupe.DefaultMaxSize)
	defer seen.Close()

	dispatcher, err = bridge.NewDispatcher(turnCtx, bridge.DispatcherConfig{
		Handler:     br,
		TurnTimeout: cfg.Bridge.TurnTimeout,
		Dedupe:      seen,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)

	var srv *http.Server
	if cfg.WebhookMode() || cfg.Server.MetricsEnabled {
		rc := routerConfig{}
		if cfg.WebhookMode() {
			rc.WebhookPath = cfg.Telegram.WebhookPath
			rc.Webhook = telegram.NewWebhookHandler(cfg.Telegram.WebhookSecret, onUpdate, logger)
		}
		if cfg.Server.MetricsEnabled {
			rc.Metrics = promReg
		}
		srv = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           newRouter(rc),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			logger.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if cfg.WebhookMode() {
		if cfg.Telegram.WebhookURL != "" {
			if err := telegram.SetWebhook(ctx, tgBot, telegram.WebhookOptions{
				URL:    cfg.Telegram.WebhookURL,
				Secret: cfg.Telegram.WebhookSecret,
			}); err != nil {
				return err
			}
			logger.Info("webhook registered", "url", cfg.Telegram.WebhookURL)
		}
	} else {
		poller := telegram.NewPoller(tgBot, logger)
		go func() {
			if err := poller.Run(ctx); err != nil {
				errCh <- fmt.Errorf("polling: %w", err)
			}
		}()
	}

	logger.Info("agentbridge started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining turns")
	case runErr = <-errCh:
		logger.Error("bridge stopped", "error", runErr)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server forced to shutdown", "error", err)
		}
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("turns still running at shutdown, cancelling", "error", err)
		cancelTurns()
	}

	logger.Info("agentbridge stopped")
	return runErr
}
