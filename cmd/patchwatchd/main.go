package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"patchwatch/internal/config"
	"patchwatch/internal/logging"
	"patchwatch/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, cfgPath, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "patchwatchd.log")},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("patchwatchd starting", logging.String("config", cfgPath))

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "patchwatchd.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("acquire daemon lock", logging.Error(err))
		return
	}
	if !locked {
		logger.Error("another patchwatchd instance holds the lock")
		return
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release daemon lock", logging.Error(err))
		}
	}()

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", logging.Error(err))
		}
	}()

	runDaemon(ctx, cfg, st, logger)
	logger.Info("patchwatchd shut down")
}

func runDaemon(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) {
	deps, err := buildComponents(cfg, st, logger)
	if err != nil {
		logger.Error("wire components", logging.Error(err))
		return
	}

	go deps.workflow.Run(ctx, deps.resolverInterval, deps.retention)
	deps.manager.Run(ctx)
}
