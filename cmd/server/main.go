package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vishnuvardhanreddy8653/smart-home/config"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/application"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/infra/httpapi"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/infra/ollama"
	"github.com/vishnuvardhanreddy8653/smart-home/internal/infra/sqlite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("opening device registry", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	timeout, err := time.ParseDuration(cfg.Ollama.Timeout)
	if err != nil {
		logger.Warn("invalid ollama timeout, using default", "error", err, "value", cfg.Ollama.Timeout)
		timeout = 30 * time.Second
	}

	oracle := ollama.NewClient(cfg.Ollama.URL, cfg.Ollama.Model, timeout)
	resolver := application.NewResolver(oracle, logger)
	hub := application.NewHub(application.NewStateStore(), logger)
	server := httpapi.NewServer(cfg.Server.Addr, hub, resolver, repo, timeout, logger)

	logger.Info("starting smart home hub",
		"addr", cfg.Server.Addr,
		"model", cfg.Ollama.Model,
	)

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
