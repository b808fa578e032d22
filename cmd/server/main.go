package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/JonMunkholm/bulkimport/internal/notify"
	"github.com/JonMunkholm/bulkimport/internal/store"
	"github.com/JonMunkholm/bulkimport/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_backend", cfg.Store.Backend,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"score_error_policy", cfg.Import.ScoreErrorPolicy,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	records, err := store.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open record store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer records.Close()
	slog.Info("record store ready", "backend", cfg.Store.Backend)

	hub := notify.NewHub()
	defer hub.Close()

	notifiers := notify.Multi{hub, notify.LogNotifier{}}
	if cfg.Notify.AMQPURL != "" {
		publisher, err := notify.DialAMQP(ctx, cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.RoutingKey)
		if err != nil {
			// The dashboard still gets notifications over SSE.
			slog.Warn("amqp notifications disabled", "error", err)
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}

	server := web.NewServer(cfg, web.Deps{
		Importer: core.NewGateway(records, core.GatewayConfig{
			Concurrency:   cfg.Import.Concurrency,
			CreateTimeout: cfg.Import.CreateTimeout,
		}),
		Notifier: notifiers,
		Stream:   hub,
		Limiter:  core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		Store:    records,
	})

	jobCtx, cancelJobs := context.WithCancel(ctx)
	go server.RunSessionSweeper(jobCtx)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		return
	}
	<-shutdownDone
	slog.Info("server stopped")
}
