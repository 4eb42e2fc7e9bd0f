package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obrasoft/bc3gest/internal/api"
	"github.com/obrasoft/bc3gest/internal/config"
	"github.com/obrasoft/bc3gest/internal/pipeline"
	"github.com/obrasoft/bc3gest/internal/runner"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick the parse boundary: an external worker process when configured,
	// otherwise the in-process core.
	var run runner.Runner
	if cfg.ParserExec != "" {
		run = &runner.Subprocess{Path: cfg.ParserExec, Log: log}
		log.Info("using subprocess parser", "path", cfg.ParserExec)
	} else {
		run = &runner.InProcess{Encoding: cfg.DefaultEncoding}
	}

	// Initialize the async pipeline.
	orch := pipeline.NewOrchestrator(cfg, run, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, run, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ParseTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting bc3gest", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
