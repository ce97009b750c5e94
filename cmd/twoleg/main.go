// Command twoleg places a ladder of post-only buy orders and, as each buy
// settles, submits the matching sell. It runs until every pair settles or
// the process is terminated.
package main

import (
	"context"
	"fmt"
	"os"

	"trademon/config"
	"trademon/internal/adapters/coinbase"
	"trademon/internal/adapters/logger"
	"trademon/internal/adapters/render"
	"trademon/internal/app"
	"trademon/internal/feed"
	"trademon/internal/ports"
	"trademon/internal/trading"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateLadder(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid ladder configuration: %v\n", err)
		os.Exit(1)
	}

	log := buildLogger(cfg)
	ctx := context.Background()

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

	pairs, err := trading.BuildPairs(trading.LadderConfig{
		ProductID:    cfg.ProductID,
		EntryPrice:   cfg.EntryPrice,
		ExitPrice:    cfg.ExitPrice,
		SourceAmount: cfg.SourceAmount,
		Steps:        cfg.LadderSteps,
	})
	if err != nil {
		log.Error(ctx, err, "Failed to build order ladder")
		os.Exit(1)
	}

	machine, err := trading.New(trading.Config{
		Exchange: client,
		Renderer: buildRenderer(cfg),
		Logger:   log,
	})
	if err != nil {
		log.Error(ctx, err, "Failed to create order pair machine")
		os.Exit(1)
	}
	machine.Register(pairs)

	service, err := app.NewTwoLegService(cfg, log, machine, supervisor)
	if err != nil {
		log.Error(ctx, err, "Failed to create two-leg trade service")
		os.Exit(1)
	}

	if err := service.Start(ctx); err != nil {
		log.Error(ctx, err, "Two-leg trade service exited with error")
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
