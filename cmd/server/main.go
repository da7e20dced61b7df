package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"auditlog/internal/app"
	"auditlog/internal/platform/config"
	"auditlog/internal/platform/logger"
)

// main wires configuration and logging, then hands the process to app.
// Shutdown on SIGINT/SIGTERM drains queued audit entries before exiting.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("start audit engine", "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(a.Run(ctx))

	if err := g.Wait(); err != nil {
		log.Error("audit engine exited with error", "error", err)
		os.Exit(1)
	}
}
