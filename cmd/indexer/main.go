package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorandp/utn-frsn-news/internal/app"
	"github.com/gorandp/utn-frsn-news/internal/config"
	"github.com/gorandp/utn-frsn-news/internal/logger"
)

// The indexer runs the discovery loop on its own, for deployments where
// fetch and notify consumers live elsewhere. It takes the store lock, so it
// cannot share a bbolt file with a running harvester.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "indexer start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("indexer starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	indexer, err := app.NewIndexer(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize indexer", "error", err)
		return err
	}

	if err := indexer.Run(ctx); err != nil {
		return fmt.Errorf("indexer run: %w", err)
	}

	return nil
}
