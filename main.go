package main

import (
	"context"
	"fmt"
	"os"

	"trademon/config"
	"trademon/internal/adapters/coinbase"
	"trademon/internal/adapters/logger"
	"trademon/internal/adapters/render"
	"trademon/internal/adapters/sqlite"
	"trademon/internal/app"
	"trademon/internal/candles"
	"trademon/internal/demark"
	"trademon/internal/feed"
	"trademon/internal/ports"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := buildLogger(cfg)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
	if err != nil {
		log.Error(ctx, err, "Failed to open candle store")
		os.Exit(1)
	}
	defer repo.Close()

	client, err := coinbase.New(coinbase.Config{
		UseSandbox: cfg.UseSandbox,
		Logger:     log,
	})
	if err != nil {
		log.Error(ctx, err, "Failed to create exchange client")
		os.Exit(1)
	}

	dialer, err := coinbase.NewFeedDialer(coinbase.FeedConfig{
		UseSandbox: cfg.UseSandbox,
		Logger:     log,
	})
	if err != nil {
		log.Error(ctx, err, "Failed to create feed dialer")
		os.Exit(1)
	}

	supervisor, err := feed.New(feed.Config{
		ProductID: cfg.ProductID,
		Dialer:    dialer,
		Policy:    feed.FixedInterval{Every: cfg.ReconnectInterval},
		Logger:    log,
	})
	if err != nil {
		log.Error(ctx, err, "Failed to create feed supervisor")
		os.Exit(1)
	}

	aggregator, err := candles.New(candles.Config{
		ProductID:   cfg.ProductID,
		Granularity: cfg.Granularity,
		Logger:      log,
	})
	if err != nil {
		log.Error(ctx, err, "Failed to create candle aggregator")
		os.Exit(1)
	}

	engine, err := demark.New(demark.Config{MaxCount: cfg.SetupMaxCount})
	if err != nil {
		log.Error(ctx, err, "Failed to create sequential count engine")
		os.Exit(1)
	}

	service, err := app.NewMonitorService(cfg, log, client, repo, buildRenderer(cfg), supervisor, aggregator, engine)
	if err != nil {
		log.Error(ctx, err, "Failed to create monitor service")
		os.Exit(1)
	}

	if err := service.Start(ctx); err != nil {
		log.Error(ctx, err, "Monitor service exited with error")
		os.Exit(1)
	}
}

func buildLogger(cfg *config.Config) ports.Logger {
	if cfg.LogFormat == "json" {
		return logger.NewZerologLogger(cfg.LogLevel)
	}
	return logger.NewStdLogger(cfg.LogLevel)
}

func buildRenderer(cfg *config.Config) ports.Renderer {
	if cfg.RenderMode == "table" {
		return render.NewTableRenderer(os.Stdout)
	}
	return render.NewJSONRenderer(os.Stdout)
}
