// Package app wires the core components into runnable services. Each service
// owns one dispatch loop: feed messages, timer firings, and call completions
// are handled strictly one at a time, so component state is only ever touched
// from a single goroutine.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trademon/config"
	"trademon/internal/candles"
	"trademon/internal/demark"
	"trademon/internal/domain"
	"trademon/internal/feed"
	"trademon/internal/ports"
)

// Overridable in tests.
var timeNow = time.Now

// MonitorService streams live trades for one product, aggregates them into
// candles seeded from history, and renders sequential-count annotations as
// each candle closes.
type MonitorService struct {
	cfg        *config.Config
	logger     ports.Logger
	exchange   ports.ExchangeClient
	repo       ports.CandleRepository
	renderer   ports.Renderer
	supervisor *feed.Supervisor
	aggregator *candles.Aggregator
	engine     *demark.Engine
}

// NewMonitorService creates the monitor service.
func NewMonitorService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	repo ports.CandleRepository,
	renderer ports.Renderer,
	supervisor *feed.Supervisor,
	aggregator *candles.Aggregator,
	engine *demark.Engine,
) (*MonitorService, error) {
	if cfg == nil || logger == nil || exchange == nil || repo == nil || renderer == nil ||
		supervisor == nil || aggregator == nil || engine == nil {
		return nil, fmt.Errorf("missing required dependencies for MonitorService")
	}
	return &MonitorService{
		cfg:        cfg,
		logger:     logger,
		exchange:   exchange,
		repo:       repo,
		renderer:   renderer,
		supervisor: supervisor,
		aggregator: aggregator,
		engine:     engine,
	}, nil
}

// Start seeds the aggregator from history and runs the dispatch loop until
// the context is cancelled or a shutdown signal arrives.
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting monitor service", map[string]interface{}{
		"product":    s.cfg.ProductID,
		"candleSize": s.cfg.CandleSize,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	// Seed from history before any live tick.
	history, err := s.exchange.HistoricRates(ctx, s.cfg.ProductID, s.cfg.Granularity)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load historic rates")
		return fmt.Errorf("failed to load historic rates: %w", err)
	}
	s.aggregator.OnClose(s.handleCandleClose)
	if err := s.aggregator.Seed(history); err != nil {
		return fmt.Errorf("failed to seed aggregator: %w", err)
	}

	// Render the combined view of the seeded history once at startup.
	s.renderCombined(ctx)

	firstDelay := candles.InitialBoundaryDelay(timeNow(), s.cfg.Granularity)
	s.logger.Info(ctx, "Next candle boundary scheduled", map[string]interface{}{"in": firstDelay.String()})
	boundaryCh := candles.StartBoundaryTimer(ctx, s.cfg.Granularity)

	supervisorErrCh := make(chan error, 1)
	go func() {
		supervisorErrCh <- s.supervisor.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Monitor service stopped")
			return nil

		case err := <-supervisorErrCh:
			if ctx.Err() != nil {
				s.logger.Info(ctx, "Monitor service stopped")
				return nil
			}
			return fmt.Errorf("feed supervisor stopped unexpectedly: %w", err)

		case msg, ok := <-s.supervisor.Messages():
			if !ok {
				continue
			}
			s.handleMessage(ctx, msg)

		case boundary, ok := <-boundaryCh:
			if !ok {
				continue
			}
			s.aggregator.Flush(boundary)
		}
	}
}

// handleMessage routes one feed message. Only match messages feed the
// aggregator; every other type is ignored.
func (s *MonitorService) handleMessage(ctx context.Context, msg domain.FeedMessage) {
	if msg.Type != domain.MsgMatch || msg.ProductID != s.cfg.ProductID {
		return
	}
	if err := s.aggregator.Ingest(msg.Tick()); err != nil {
		s.logger.Error(ctx, err, "Failed to ingest tick", map[string]interface{}{"time": msg.Time})
	}
}

// handleCandleClose persists the closed candle and re-renders the combined
// annotated view. Runs inside the dispatch loop via the aggregator callback.
func (s *MonitorService) handleCandleClose(c domain.Candle) {
	ctx := context.Background()
	if err := s.repo.SaveCandle(ctx, c); err != nil {
		// Logged by the repository; persistence failure never stops the feed.
		s.logger.Warn(ctx, "Candle not persisted", map[string]interface{}{"bucket": c.Time})
	}
	s.renderCombined(ctx)
}

func (s *MonitorService) renderCombined(ctx context.Context) {
	combined := s.engine.CombinedRecent(s.aggregator.History())
	if len(combined) == 0 {
		s.logger.Debug(ctx, "Not enough candles for sequential counts")
		return
	}

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
	if err := s.renderer.Render(columns, rows, ""); err != nil {
		s.logger.Error(ctx, err, "Failed to render combined view")
	}
}
