package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"reelvault/internal/config"
	"reelvault/internal/daemon"
	"reelvault/internal/deps"
	"reelvault/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, status := range deps.Check(deps.ForConfig(cfg)) {
		if status.Available {
			continue
		}
		if status.Optional {
			logger.Warn("optional dependency unavailable",
				logging.String("name", status.Name),
				logging.String("detail", status.Detail))
			continue
		}
		logger.Error("required dependency unavailable",
			logging.String("name", status.Name),
			logging.String("detail", status.Detail))
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	// Refresh the library once on boot so freshly added files are visible.
	if result, err := d.ScanWatched(ctx); err != nil {
		logger.Warn("initial library scan failed", logging.Error(err))
	} else if result.Added+result.Updated > 0 {
		logger.Info("initial library scan",
			logging.Int("added", result.Added),
			logging.Int("updated", result.Updated),
			logging.Int("skipped", result.Skipped))
	}

	<-ctx.Done()
	logger.Info("reelvaultd shutting down")
	d.Stop()
}
