// Package candles buckets live trade ticks into fixed-duration OHLCV candles
// aligned to wall-clock boundaries.
package candles

import (
	"context"
	"fmt"
	"time"

	"trademon/internal/domain"
	"trademon/internal/ports"
)

const maxHistorySize = 500 // bound the in-memory candle window

// CloseHandler receives each candle as it closes, in bucket order.
type CloseHandler func(c domain.Candle)

// Config holds parameters for the aggregator.
type Config struct {
	ProductID   string
	Granularity time.Duration
	Logger      ports.Logger
}

// Aggregator owns the single in-progress candle for one product. It must be
// seeded with historical candles before the first live tick. Empty granules
// are carried forward: a zero-volume candle whose OHLC all equal the previous
// close, so the 4-back comparison keeps contiguous indexing.
//
// All methods are called from one dispatch goroutine; the aggregator does no
// locking of its own.
type Aggregator struct {
	productID   string
	granularity time.Duration
	logger      ports.Logger

	history    []domain.Candle
	current    *domain.Candle
	lastClosed time.Time // start of the most recently closed bucket
	seeded     bool
	handlers   []CloseHandler
}

// New creates an aggregator.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for aggregator")
	}
	if cfg.ProductID == "" {
		return nil, fmt.Errorf("product id is required for aggregator")
	}
	if cfg.Granularity <= 0 {
		return nil, fmt.Errorf("granularity must be positive, got %s", cfg.Granularity)
	}
	return &Aggregator{
		productID:   cfg.ProductID,
		granularity: cfg.Granularity,
		logger:      cfg.Logger,
	}, nil
}

// OnClose registers a handler invoked for every closed candle, in the order
// candles close. Handlers run inside the dispatch goroutine.
func (a *Aggregator) OnClose(h CloseHandler) {
	a.handlers = append(a.handlers, h)
}

// Seed installs prior candles, ordered oldest first. It must be called
// exactly once, before any live tick is processed.
func (a *Aggregator) Seed(history []domain.Candle) error {
	if a.seeded {
		return fmt.Errorf("aggregator already seeded")
	}
	a.history = make([]domain.Candle, len(history))
	copy(a.history, history)
	a.trimHistory()
	if len(a.history) > 0 {
		a.lastClosed = a.history[len(a.history)-1].Time
	}
	a.seeded = true
	a.logger.Info(context.Background(), "Aggregator seeded", map[string]interface{}{
		"product":     a.productID,
		"granularity": a.granularity.String(),
		"candles":     len(a.history),
	})
	return nil
}

// Ingest folds one tick into the open bucket. A tick that falls in a later
// bucket first closes the current one (and carries forward any skipped
// granules), then opens the tick's bucket.
func (a *Aggregator) Ingest(tick domain.Tick) error {
	if !a.seeded {
		return ports.ErrNotSeeded
	}

	bucket := domain.BucketStart(tick.Time, a.granularity)
	if a.current == nil {
		if !a.lastClosed.IsZero() && !bucket.After(a.lastClosed) {
			// Late tick for a bucket Flush already closed; reopening it
			// would duplicate the bucket in history. Drop it.
			a.logger.Warn(context.Background(), "Dropping tick for closed bucket", map[string]interface{}{
				"product": a.productID,
				"tick":    tick.Time,
				"closed":  a.lastClosed,
			})
			return nil
		}
		a.carryForwardUntil(bucket)
		a.openBucket(bucket, tick)
		return nil
	}

	if bucket.After(a.current.Time) {
		a.closeCurrent()
		a.carryForwardUntil(bucket)
		a.openBucket(bucket, tick)
		return nil
	}

	if bucket.Before(a.current.Time) {
		// Late tick from a bucket that already closed; drop it.
		a.logger.Warn(context.Background(), "Dropping tick for closed bucket", map[string]interface{}{
			"product": a.productID,
			"tick":    tick.Time,
			"current": a.current.Time,
		})
		return nil
	}

	c := a.current
	if tick.Price > c.High {
		c.High = tick.Price
	}
	if tick.Price < c.Low {
		c.Low = tick.Price
	}
	c.Close = tick.Price
	c.Volume += tick.Size
	return nil
}

// Flush closes every bucket that ends at or before the given boundary. The
// boundary timer calls this at each granularity edge so a candle closes even
// when no ticks arrived for the whole granule.
func (a *Aggregator) Flush(boundary time.Time) {
	if !a.seeded {
		return
	}
	boundary = domain.BucketStart(boundary, a.granularity)
	if a.current != nil && boundary.After(a.current.Time) {
		a.closeCurrent()
	}
	a.carryForwardUntil(boundary)
}

// History returns a copy of the closed candles, ordered oldest first.
func (a *Aggregator) History() []domain.Candle {
	out := make([]domain.Candle, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Aggregator) openBucket(bucket time.Time, tick domain.Tick) {
	a.current = &domain.Candle{
		Time:        bucket,
		Granularity: a.granularity,
		ProductID:   a.productID,
		Open:        tick.Price,
		High:        tick.Price,
		Low:         tick.Price,
		Close:       tick.Price,
		Volume:      tick.Size,
	}
}

func (a *Aggregator) closeCurrent() {
	closed := *a.current
	a.current = nil
	a.appendClosed(closed)
}

// carryForwardUntil emits zero-volume candles for every granule strictly
// before bucket that has no candle yet. OHLC all equal the previous close.
func (a *Aggregator) carryForwardUntil(bucket time.Time) {
	if len(a.history) == 0 {
		return
	}
	last := a.history[len(a.history)-1]
	for next := last.Time.Add(a.granularity); next.Before(bucket); next = next.Add(a.granularity) {
		carried := domain.Candle{
			Time:        next,
			Granularity: a.granularity,
			ProductID:   a.productID,
			Open:        last.Close,
			High:        last.Close,
			Low:         last.Close,
			Close:       last.Close,
			Volume:      0,
		}
		a.appendClosed(carried)
		last = carried
	}
}

func (a *Aggregator) appendClosed(c domain.Candle) {
	a.lastClosed = c.Time
	a.history = append(a.history, c)
	a.trimHistory()
	a.logger.Debug(context.Background(), "Candle closed", map[string]interface{}{
		"product": a.productID,
		"bucket":  c.Time,
		"close":   c.Close,
		"volume":  c.Volume,
	})
	for _, h := range a.handlers {
		h(c)
	}
}

func (a *Aggregator) trimHistory() {
	if len(a.history) > maxHistorySize {
		a.history = a.history[len(a.history)-maxHistorySize:]
	}
}
