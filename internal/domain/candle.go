package domain

import "time"

// Tick is a single trade event received from the live feed.
type Tick struct {
	ProductID string    // Trading pair (e.g., "BTC-USD")
	Price     float64   // Trade price
	Size      float64   // Trade size in base currency
	Time      time.Time // Exchange timestamp of the trade
}

// Candle is an OHLCV aggregate over one fixed time bucket.
// A closed candle is immutable; only the aggregator's in-progress
// candle mutates, and it leaves the aggregator by value.
type Candle struct {
	Time        time.Time     // Start of the bucket
	Granularity time.Duration // Bucket width
	ProductID   string        // Trading pair
	Open        float64       // First trade price in the bucket
	High        float64       // Highest trade price
	Low         float64       // Lowest trade price
	Close       float64       // Last trade price
	Volume      float64       // Sum of trade sizes
}

// BucketStart truncates t to the start of its bucket at the given granularity.
func BucketStart(t time.Time, granularity time.Duration) time.Time {
	return t.UTC().Truncate(granularity)
}
