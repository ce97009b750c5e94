// Command showcount fetches recent history for one product and prints its
// sequential trend counts, then exits. Useful for a quick read on a market
// without running the live monitor.
package main

import (
	"context"
	"fmt"
	"os"

	"trademon/config"
	"trademon/internal/adapters/coinbase"
	"trademon/internal/adapters/logger"
	"trademon/internal/adapters/render"
	"trademon/internal/demark"
	"trademon/internal/domain"
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

	client, err := coinbase.New(coinbase.Config{
		UseSandbox: cfg.UseSandbox,
		Logger:     log,
	})
	if err != nil {
		log.Error(ctx, err, "Failed to create exchange client")
		os.Exit(1)
	}

	engine, err := demark.New(demark.Config{MaxCount: cfg.SetupMaxCount})
	if err != nil {
		log.Error(ctx, err, "Failed to create sequential count engine")
		os.Exit(1)
	}

	history, err := client.HistoricRates(ctx, cfg.ProductID, cfg.Granularity)
	if err != nil {
		log.Error(ctx, err, "Failed to load historic rates")
		os.Exit(1)
	}

	r := buildRenderer(cfg)
	if cfg.CombinedView {
		combined := engine.CombinedRecent(history)
		if len(combined) == 0 {
			fmt.Fprintln(os.Stderr, "Not enough candles to compute sequential counts")
			os.Exit(1)
		}
		if err := renderCombined(r, combined); err != nil {
			log.Error(ctx, err, "Failed to render sequential counts")
			os.Exit(1)
		}
		return
	}

	bearish := engine.SinceLastBearishFlip(history)
	bullish := engine.SinceLastBullishFlip(history)
	if len(bearish) == 0 && len(bullish) == 0 {
		fmt.Fprintln(os.Stderr, "Not enough candles to compute sequential counts")
		os.Exit(1)
	}
	if err := renderSuffix(r, bearish); err != nil {
		log.Error(ctx, err, "Failed to render sequential counts")
		os.Exit(1)
	}
	if err := renderSuffix(r, bullish); err != nil {
		log.Error(ctx, err, "Failed to render sequential counts")
		os.Exit(1)
	}
}

// renderSuffix prints the candles since the most recent flip into one bias,
// annotated with that bias's running count.
func renderSuffix(r ports.Renderer, annotated []domain.AnnotatedCandle) error {
	columns := []string{"time", "open", "high", "low", "close", "volume", "bias", "count", "flip"}
	rows := make([][]interface{}, 0, len(annotated))
	for _, ac := range annotated {
		rows = append(rows, []interface{}{
			ac.Time.Format("2006-01-02 15:04"),
			ac.Open,
			ac.High,
			ac.Low,
			ac.Close,
			ac.Volume,
			string(ac.Annotation.Bias),
			ac.Annotation.Count,
			ac.Annotation.IsFlip,
		})
	}
	return r.Render(columns, rows, "")
}

func renderCombined(r ports.Renderer, combined []domain.CombinedCandle) error {
	columns := []string{"time", "open", "high", "low", "close", "volume", "bull_count", "bull_flip", "bear_count", "bear_flip"}
	rows := make([][]interface{}, 0, len(combined))
	for _, cc := range combined {
		rows = append(rows, []interface{}{
			cc.Time.Format("2006-01-02 15:04"),
			cc.Open,
			cc.High,
			cc.Low,
			cc.Close,
			cc.Volume,
			cc.Bullish.Count,
			cc.Bullish.IsFlip,
			cc.Bearish.Count,
			cc.Bearish.IsFlip,
		})
	}
	return r.Render(columns, rows, "")
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
