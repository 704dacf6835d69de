// Package main wires together the vacation rental crawler binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/app"
	"github.com/JakeFAU/vacation-rental-crawler/internal/config"
	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		Service:     "rentalcrawler",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build failed", zap.Error(err))
		return 1
	}
	err = a.Run(ctx)
	switch {
	case err == nil:
		logger.Info("crawl complete")
		return 0
	case errors.Is(err, context.Canceled):
		logger.Info("crawl interrupted, progress is checkpointed")
		return 0
	case errors.Is(err, crawler.ErrStructural):
		logger.Error("crawl aborted: site structure changed, manual intervention required", zap.Error(err))
		return 2
	default:
		logger.Error("crawl failed", zap.Error(err))
		return 1
	}
}
