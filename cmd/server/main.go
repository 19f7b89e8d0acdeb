package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tikrelay/tikrelay/internal/api"
	"github.com/tikrelay/tikrelay/internal/api/handler"
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
		fmt.Printf("tikrelay-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tikrelay server",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Server.APIKey == "" {
		logger.Error("server api key is required")
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

	// Initialize handlers
	resolveHandler := handler.NewResolveHandler(res, logger)
	deliveryHandler := handler.NewDeliveryHandler(store, logger)
	healthHandler := handler.NewHealthHandler(store)

	// Setup router
	router := api.NewRouter(resolveHandler, deliveryHandler, healthHandler, cfg.Server.APIKey)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
