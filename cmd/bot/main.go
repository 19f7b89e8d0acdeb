package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tikrelay/tikrelay/internal/bot"
	"github.com/tikrelay/tikrelay/internal/config"
	"github.com/tikrelay/tikrelay/internal/extract"
	"github.com/tikrelay/tikrelay/internal/fetch"
	"github.com/tikrelay/tikrelay/internal/history"
	"github.com/tikrelay/tikrelay/internal/resolver"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tikrelay-bot %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tikrelay bot",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Telegram.Token == "" {
		logger.Error("telegram token is required")
		os.Exit(1)
	}

	// Ensure the scratch directory exists
	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		logger.Error("failed to create temp directory", "error", err)
		os.Exit(1)
	}

	// Initialize the resolution pipeline
	fetcher := fetch.NewClient(cfg.Download, logger)
	scrape := extract.NewScrapeExtractor(fetcher, cfg.Storage.TempPath, logger)
	engine := extract.NewEngineExtractor(cfg.Engine, cfg.Download, cfg.Storage.TempPath, logger)
	apiExt := extract.NewAPIExtractor(cfg.API, fetcher, cfg.Storage.TempPath, logger)
	res := resolver.New(scrape, engine, apiExt, resolver.PolicyFromConfig(cfg.Resolver), cfg.Storage.TempPath, logger)

	// Open the delivery log
	store, err := history.Open(cfg.History, logger)
	if err != nil {
		logger.Error("failed to open delivery log", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Connect the bot
	b, err := bot.New(cfg.Telegram, res, store, logger)
	if err != nil {
		logger.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
