package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stepimport/internal/config"
	"github.com/JonMunkholm/stepimport/internal/core"
	_ "github.com/JonMunkholm/stepimport/internal/importer" // Register all importers
	"github.com/JonMunkholm/stepimport/internal/logging"
	"github.com/JonMunkholm/stepimport/internal/metrics"
	"github.com/JonMunkholm/stepimport/internal/notify"
	"github.com/JonMunkholm/stepimport/internal/progress"
	"github.com/JonMunkholm/stepimport/internal/source"
	"github.com/JonMunkholm/stepimport/internal/store"
	"github.com/JonMunkholm/stepimport/internal/web"
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
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "migrated", cfg.Database.Migrate)
	}

	progressStore, closeProgress, err := progress.New(cfg.Progress, pool)
	if err != nil {
		slog.Error("failed to open progress store", "backend", cfg.Progress.Backend, "error", err)
		os.Exit(1)
	}
	defer closeProgress()

	workspace, err := source.NewWorkspace(cfg.Import.UploadDir, cfg.Import.MaxFileSize)
	if err != nil {
		slog.Error("failed to prepare upload dir", "error", err)
		os.Exit(1)
	}

	notifiers := []notify.Notifier{notify.Log{}}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		kafka, err := notify.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		if err != nil {
			slog.Error("failed to connect to kafka", "brokers", cfg.Notify.KafkaBrokers, "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		notifiers = append(notifiers, kafka)
	}

	guard := core.NewStepGuard(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	prom := metrics.NewPrometheus()
	prom.WatchGuard(guard)

	for _, def := range core.All() {
		slog.Debug("importer registered", "key", def.Info.Key, "policy", def.New(pool).CountPolicy())
	}
	slog.Info("importers registered", "count", core.ImporterCount())

	server := web.NewServer(web.Deps{
		Config:    cfg,
		DB:        pool,
		Progress:  progressStore,
		Workspace: workspace,
		Guard:     guard,
		Metrics:   prom,
		Notifiers: notifiers,
	})

	// Graceful shutdown. Start returns as soon as Shutdown begins, so main
	// waits on done until running steps have drained.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...", "active_steps", guard.ActiveCount())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown incomplete", "error", err, "active_steps", guard.ActiveCount())
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
