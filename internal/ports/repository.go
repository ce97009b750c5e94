package ports

import (
	"context"
	"time"

	"trademon/internal/domain"
)

// CandleRepository defines the interface for storing and retrieving closed candles.
type CandleRepository interface {
	// SaveCandle persists one closed candle. Saving the same bucket twice
	// replaces the earlier record.
	SaveCandle(ctx context.Context, c domain.Candle) error
	// RecentByProduct retrieves the most recent closed candles for a product
	// and granularity, ordered oldest first, up to a limit.
	RecentByProduct(ctx context.Context, productID string, granularity time.Duration, limit int) ([]domain.Candle, error)
}
